package handler

import (
	"log"
	"net/http"

	"gowa-trello/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboard is served from configurable origins, CORS handles the rest
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws - dashboard event stream (session status, QR codes, confirmations)
func WebSocketHandler(hub *ws.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return ErrorResponse(c, 500, "Failed to upgrade WebSocket", "UPGRADE_FAILED", err.Error())
		}

		client := ws.NewClient(hub, conn)
		hub.Register(client)

		log.Println("Dashboard client connected to /ws")

		go client.WritePump()
		go client.ReadPump()

		return nil
	}
}
