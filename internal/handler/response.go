package handler

import (
	"github.com/labstack/echo/v4"
)

// SuccessResponse is the shared success envelope.
func SuccessResponse(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// ErrorResponse is the shared error envelope. errCode is a stable,
// machine-readable tag; detail carries the underlying error text.
func ErrorResponse(c echo.Context, code int, message, errCode, detail string) error {
	resp := map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    errCode,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	return c.JSON(code, resp)
}
