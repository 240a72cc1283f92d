package handler

import (
	"context"
	"errors"
	"time"

	"gowa-trello/internal/model"
	"gowa-trello/internal/service"
	"gowa-trello/internal/trello"

	"github.com/labstack/echo/v4"
)

// Request body untuk send message
type SendMessageRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type BulkSendRequest struct {
	Messages []SendMessageRequest `json:"messages"`
}

// POST /api/messages/:sessionId/send
// Sends a text message and chains the Trello confirmation with the send
// result. Board errors are advisory; the send still reports success.
func SendMessage(m *service.Manager, engine *trello.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("sessionId")

		var req SendMessageRequest
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if req.Number == "" || req.Text == "" {
			return ErrorResponse(c, 400, "Fields 'number' and 'text' are required", "VALIDATION_ERROR", "")
		}

		rec, confirmation := sendAndConfirm(c.Request().Context(), m, engine, sessionID, req)
		if rec == nil {
			if confirmation != nil && confirmation.err != nil && errors.Is(confirmation.err, service.ErrOffline) {
				return ErrorResponse(c, 400, "WhatsApp offline", "OFFLINE", "Session is not connected")
			}
			detail := ""
			if confirmation != nil && confirmation.err != nil {
				detail = confirmation.err.Error()
			}
			return ErrorResponse(c, 500, "Failed to send message", "SEND_FAILED", detail)
		}

		return SuccessResponse(c, 200, "Message sent successfully", map[string]interface{}{
			"message": rec,
			"trello":  confirmation.payload(),
		})
	}
}

// POST /api/messages/:sessionId/send-bulk
func SendBulkMessages(m *service.Manager, engine *trello.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("sessionId")

		var req BulkSendRequest
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if len(req.Messages) == 0 {
			return ErrorResponse(c, 400, "Field 'messages' must be a non-empty array", "VALIDATION_ERROR", "")
		}

		var sent, failed int
		results := make([]map[string]interface{}, 0, len(req.Messages))

		for _, msg := range req.Messages {
			rec, confirmation := sendAndConfirm(c.Request().Context(), m, engine, sessionID, msg)

			item := map[string]interface{}{
				"number": msg.Number,
				"trello": confirmation.payload(),
			}
			if rec != nil {
				sent++
				item["status"] = "sent"
				item["message"] = rec
			} else {
				failed++
				item["status"] = "failed"
				if confirmation.err != nil {
					item["error"] = confirmation.err.Error()
				}
			}
			results = append(results, item)
		}

		return SuccessResponse(c, 200, "Bulk send finished", map[string]interface{}{
			"summary": map[string]int{
				"total":  len(req.Messages),
				"sent":   sent,
				"failed": failed,
			},
			"results": results,
		})
	}
}

// GET /api/messages/:sessionId/sent
func GetSentMessages(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		messages, err := m.GetSentMessages(c.Param("sessionId"))
		if err != nil {
			return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "")
		}
		return SuccessResponse(c, 200, "Sent messages retrieved", messages)
	}
}

// GET /api/messages/:sessionId/received
func GetReceivedMessages(m *service.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		messages, err := m.GetReceivedMessages(c.Param("sessionId"))
		if err != nil {
			return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "")
		}
		return SuccessResponse(c, 200, "Received messages retrieved", messages)
	}
}

// confirmOutcome carries the advisory Trello result alongside a send.
type confirmOutcome struct {
	result *trello.ConfirmationResult
	err    error
}

func (o *confirmOutcome) payload() interface{} {
	if o == nil {
		return nil
	}
	if o.err != nil {
		return map[string]string{"error": o.err.Error()}
	}
	return o.result
}

func sendAndConfirm(ctx context.Context, m *service.Manager, engine *trello.Engine, sessionID string, req SendMessageRequest) (*model.MessageRecord, *confirmOutcome) {
	sendCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	rec, err := m.SendText(sendCtx, sessionID, req.Number, req.Text)
	if err != nil {
		return nil, &confirmOutcome{err: err}
	}

	result, err := engine.ProcessConfirmation(ctx, req.Number, req.Text, rec.Direction)
	if err != nil {
		// non-blocking: the message is already out
		return rec, &confirmOutcome{err: err}
	}
	return rec, &confirmOutcome{result: result}
}
