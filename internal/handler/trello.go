package handler

import (
	"strconv"

	"gowa-trello/internal/service"
	"gowa-trello/internal/trello"

	"github.com/labstack/echo/v4"
)

// GET /api/trello/status
func TrelloStatus(engine *trello.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !engine.Configured() {
			return SuccessResponse(c, 200, "Trello status", map[string]interface{}{
				"configured": false,
				"message":    "Trello is not configured. Set TRELLO_API_KEY, TRELLO_TOKEN and TRELLO_BOARD_ID.",
			})
		}

		board, err := engine.BoardInfo(c.Request().Context())
		if err != nil {
			return ErrorResponse(c, 500, "Failed to fetch board info", "TRELLO_ERROR", err.Error())
		}

		return SuccessResponse(c, 200, "Trello status", map[string]interface{}{
			"configured": true,
			"board":      board,
		})
	}
}

// GET /api/trello/lists
func TrelloLists(engine *trello.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !engine.Configured() {
			return ErrorResponse(c, 400, "Trello is not configured", "TRELLO_NOT_CONFIGURED", "")
		}

		lists, err := engine.Lists(c.Request().Context())
		if err != nil {
			return ErrorResponse(c, 500, "Failed to fetch lists", "TRELLO_ERROR", err.Error())
		}

		return SuccessResponse(c, 200, "Lists retrieved", map[string]interface{}{
			"total": len(lists),
			"lists": lists,
		})
	}
}

// POST /api/trello/search
func SearchCards(engine *trello.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Number string `json:"number"`
		}
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if req.Number == "" {
			return ErrorResponse(c, 400, "Field 'number' is required", "VALIDATION_ERROR", "")
		}

		cards, err := engine.FindCards(c.Request().Context(), req.Number)
		if err != nil {
			return ErrorResponse(c, 500, "Card search failed", "TRELLO_ERROR", err.Error())
		}

		return SuccessResponse(c, 200, "Cards retrieved", map[string]interface{}{
			"total": len(cards),
			"cards": cards,
		})
	}
}

// GET /api/trello/actions?limit=&offset=
func GetActions(engine *trello.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))

		actions, total := engine.Actions(limit, offset)

		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}
		if offset < 0 {
			offset = 0
		}

		return c.JSON(200, map[string]interface{}{
			"success": true,
			"pagination": map[string]interface{}{
				"total":   total,
				"limit":   limit,
				"offset":  offset,
				"hasMore": offset+limit < total,
			},
			"data": actions,
		})
	}
}

// GET /api/filters
func GetFilters(filters *service.FilterStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		keywords, mediaTypes := filters.Get()
		return SuccessResponse(c, 200, "Filters retrieved", map[string]interface{}{
			"keywords":   keywords,
			"mediaTypes": mediaTypes,
		})
	}
}

// POST /api/filters
// Omitted (null) fields stay untouched; supplied fields are replaced.
func SetFilters(filters *service.FilterStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Keywords   []string `json:"keywords"`
			MediaTypes []string `json:"mediaTypes"`
		}
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
		}

		keywords, mediaTypes := filters.Set(req.Keywords, req.MediaTypes)
		return SuccessResponse(c, 200, "Filters updated", map[string]interface{}{
			"keywords":   keywords,
			"mediaTypes": mediaTypes,
		})
	}
}
