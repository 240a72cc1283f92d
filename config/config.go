package config

import (
	"os"
	"strconv"
	"strings"
)

// Trello integration (kosong = integration disabled)
var TrelloAPIKey string
var TrelloToken string
var TrelloBoardID string
var TrelloConfirmedListName string

// Initial filter policy, comma separated. Mutable at runtime via /api/filters.
var FilterKeywords []string
var FilterMediaTypes []string

// SessionsDir holds one credential directory per session id.
var SessionsDir string

// Load membaca semua env ke package vars. Panggil sekali di main,
// setelah godotenv.Load().
func Load() {
	TrelloAPIKey = os.Getenv("TRELLO_API_KEY")
	TrelloToken = os.Getenv("TRELLO_TOKEN")
	TrelloBoardID = os.Getenv("TRELLO_BOARD_ID")
	TrelloConfirmedListName = getEnv("TRELLO_CONFIRMED_LIST_NAME", "Concluído")

	FilterKeywords = splitList(os.Getenv("TRELLO_FILTER_KEYWORDS"))
	FilterMediaTypes = splitList(os.Getenv("TRELLO_FILTER_MEDIA_TYPES"))

	SessionsDir = getEnv("SESSIONS_DIR", "sessions")
}

// TrelloConfigured reports whether all required Trello credentials are set.
func TrelloConfigured() bool {
	return TrelloAPIKey != "" && TrelloToken != "" && TrelloBoardID != ""
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvAsInt parses an int env var with fallback.
func GetEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
