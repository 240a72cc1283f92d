package model

import "time"

// ConfirmedCard identifies one Trello card touched by a confirmation run.
type ConfirmedCard struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CardURL string `json:"cardUrl,omitempty"`
}

// ConfirmationAction is one audit entry of a reconciliation attempt that
// reached the card loop. Kept newest first, capacity 100.
type ConfirmationAction struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Number         string          `json:"number"`
	CardsConfirmed int             `json:"cardsConfirmed"`
	Cards          []ConfirmedCard `json:"cards"`
}
