package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gowa-trello/config"
	"gowa-trello/internal/handler"
	"gowa-trello/internal/service"
	"gowa-trello/internal/transport"
	"gowa-trello/internal/trello"
	"gowa-trello/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {

	// Load .env (abaikan error kalau file tidak ada, misal di production)
	_ = godotenv.Load()
	config.Load()

	// WebSocket hub untuk dashboard realtime
	hub := ws.NewHub()
	go hub.Run()

	// **************************
	// Trello integration
	// **************************
	engine := initTrello(hub)

	filters := service.NewFilterStore(config.FilterKeywords, config.FilterMediaTypes)
	manager := service.NewManager(transport.Dial, config.SessionsDir, filters, engine, hub)

	// Boot every session with persisted credentials
	log.Println("Loading existing sessions...")
	manager.StartAll()

	// Setup Echo
	e := echo.New()
	e.Use(middleware.Recover())

	originsEnv := os.Getenv("CORS_ALLOW_ORIGINS")
	if originsEnv == "" {
		originsEnv = "*"
	}
	allowOrigins := strings.Split(originsEnv, ",")
	for i, o := range allowOrigins {
		allowOrigins[i] = strings.TrimSpace(o)
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.PATCH,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
		},
	}))

	// Rate limiter configuration from env
	rateLimit := config.GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10)
	rateBurst := config.GetEnvAsInt("RATE_LIMIT_BURST", 10)
	rateWindow := config.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3)

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rateLimit),
				Burst:     rateBurst,
				ExpiresIn: time.Duration(rateWindow) * time.Minute,
			},
		),
	}))

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		response := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		switch code {
		case http.StatusMethodNotAllowed:
			response["message"] = "Method not allowed for this endpoint"
		case http.StatusNotFound:
			response["message"] = "Endpoint not found"
		}

		c.JSON(code, response)
	}

	// Health check
	e.GET("/", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"success": true,
			"message": "WhatsApp + Trello bridge is running",
			"version": "1.0.0",
		})
	})

	// Dashboard event stream
	e.GET("/ws", handler.WebSocketHandler(hub))

	api := e.Group("/api")

	// Session lifecycle
	api.GET("/status", handler.GetAllStatus(manager))
	api.GET("/status/:sessionId", handler.GetStatus(manager))
	api.GET("/status/:sessionId/qr", handler.GetQR(manager))
	api.POST("/status/:sessionId/logout", handler.Logout(manager))
	api.POST("/sessions/:sessionId/start", handler.StartSession(manager))

	// Messages
	api.POST("/messages/:sessionId/send", handler.SendMessage(manager, engine))
	api.POST("/messages/:sessionId/send-bulk", handler.SendBulkMessages(manager, engine))
	api.GET("/messages/:sessionId/sent", handler.GetSentMessages(manager))
	api.GET("/messages/:sessionId/received", handler.GetReceivedMessages(manager))

	// Trello
	api.GET("/trello/status", handler.TrelloStatus(engine))
	api.GET("/trello/lists", handler.TrelloLists(engine))
	api.POST("/trello/search", handler.SearchCards(engine))
	api.GET("/trello/actions", handler.GetActions(engine))

	// Filters
	api.GET("/filters", handler.GetFilters(filters))
	api.POST("/filters", handler.SetFilters(filters))

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000" // default aman
	}

	log.Printf("Server starting on port %s", port)
	log.Fatal(e.Start(":" + port))
}

// initTrello builds the confirmation engine, resolving the done-list id by
// name when the integration is configured.
func initTrello(hub *ws.Hub) *trello.Engine {
	if !config.TrelloConfigured() {
		log.Println("⏸️  Trello not configured, confirmations disabled (set TRELLO_API_KEY, TRELLO_TOKEN, TRELLO_BOARD_ID)")
		return trello.NewEngine(nil, "", hub)
	}

	client := trello.NewClient(config.TrelloAPIKey, config.TrelloToken, config.TrelloBoardID)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	targetListID := ""
	board, err := client.GetBoard(ctx)
	if err != nil {
		log.Printf("❌ Trello error: %v", err)
	} else {
		log.Printf("🔗 Trello connected: board %q", board.Name)

		list, found, err := trello.ResolveConfirmedList(ctx, client, config.TrelloConfirmedListName)
		switch {
		case err != nil:
			log.Printf("⚠ Failed to resolve confirmed list: %v", err)
		case found:
			targetListID = list.ID
			log.Printf("📌 Confirmed list: %q (%s)", list.Name, list.ID)
		default:
			log.Printf("⚠ List %q not found on the board. Available columns:", config.TrelloConfirmedListName)
			if lists, err := client.GetLists(ctx); err == nil {
				for _, l := range lists {
					log.Printf("   - %s", l.Name)
				}
			}
			log.Println("   Tip: set TRELLO_CONFIRMED_LIST_NAME to one of those names.")
		}
	}

	return trello.NewEngine(client, targetListID, hub)
}
