package handler

import (
	"context"
	"errors"
	"time"

	"gowa-trello/internal/model"
	"gowa-trello/internal/service"

	"github.com/labstack/echo/v4"
)

// GET /api/status
func GetAllStatus(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		return SuccessResponse(c, 200, "Statuses retrieved", m.GetAllStatuses())
	}
}

// GET /api/status/:sessionId
func GetStatus(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		status, err := m.GetStatus(c.Param("sessionId"))
		if err != nil {
			return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "")
		}
		return SuccessResponse(c, 200, "Status retrieved", status)
	}
}

// GET /api/status/:sessionId/qr
func GetQR(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("sessionId")

		status, err := m.GetStatus(sessionID)
		if err != nil {
			return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "")
		}

		if status.Status == model.StatusConnected {
			return SuccessResponse(c, 200, "Already connected", map[string]interface{}{
				"connected": true,
				"qrCode":    nil,
			})
		}

		dataURL, err := m.GetQRCode(sessionID)
		if err != nil {
			return ErrorResponse(c, 500, "Failed to render QR code", "QR_RENDER_FAILED", err.Error())
		}

		var qr interface{}
		if dataURL != "" {
			qr = dataURL
		}
		return SuccessResponse(c, 200, "QR code retrieved", map[string]interface{}{
			"connected": false,
			"qrCode":    qr,
		})
	}
}

// POST /api/sessions/:sessionId/start
func StartSession(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("sessionId")

		sess, err := m.Start(sessionID)
		if err != nil {
			if errors.Is(err, service.ErrCredentialStorage) {
				return ErrorResponse(c, 500, "Failed to initialize credential storage", "CREDENTIAL_STORAGE_FAILED", err.Error())
			}
			return ErrorResponse(c, 500, "Failed to start session", "START_FAILED", err.Error())
		}

		return SuccessResponse(c, 200, "Session started", map[string]interface{}{
			"sessionId": sess.ID,
			"status":    sess.Status,
			"nextStep":  "Call GET /api/status/:sessionId/qr if pairing is required",
		})
	}
}

// POST /api/status/:sessionId/logout
func Logout(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
		defer cancel()

		if err := m.Logout(ctx, c.Param("sessionId")); err != nil {
			if errors.Is(err, service.ErrSessionNotFound) {
				return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "")
			}
			return ErrorResponse(c, 500, "Failed to logout", "LOGOUT_FAILED", err.Error())
		}

		return SuccessResponse(c, 200, "Logged out successfully", map[string]interface{}{
			"sessionId": c.Param("sessionId"),
		})
	}
}
