package model

import "time"

// Direction of a message record.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Media type tags assigned by the classifier. "other" is never eligible for
// Trello reconciliation.
const (
	MediaText     = "text"
	MediaImage    = "image"
	MediaVideo    = "video"
	MediaAudio    = "audio"
	MediaDocument = "document"
	MediaSticker  = "sticker"
	MediaOther    = "other"
)

// MessageRecord is one entry in a session's sent/received history.
// Immutable once created.
type MessageRecord struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Number    string    `json:"number"`
	PushName  string    `json:"pushName,omitempty"`
	Content   string    `json:"content"`
	MediaType string    `json:"mediaType"`
	Timestamp time.Time `json:"timestamp"`
}
