package ws

import "time"

// Event names pushed to dashboard clients.
const (
	EventSessionStatusChanged = "SESSION_STATUS_CHANGED"
	EventQRGenerated          = "QR_GENERATED"
	EventConfirmationRecorded = "CONFIRMATION_RECORDED"
)

// WsEvent is the envelope for everything broadcast over /ws.
type WsEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SessionStatusChangedData mirrors the /api/status snapshot.
type SessionStatusChangedData struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Number    string `json:"number,omitempty"`
	HasQR     bool   `json:"has_qr"`
}

// QRGeneratedData carries a fresh pairing challenge.
type QRGeneratedData struct {
	SessionID string `json:"session_id"`
	QRData    string `json:"qr_data"`
}
