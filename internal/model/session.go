package model

import (
	"gowa-trello/internal/transport"
)

// Session states (lihat juga state machine di service.Manager).
const (
	StatusUninitialized = "uninitialized"
	StatusAwaitingQR    = "awaiting_qr"
	StatusConnected     = "connected"
	StatusDisconnected  = "disconnected"
)

// Kapasitas history per session, entry paling lama dibuang.
const HistoryCap = 500

// Session is one logical WhatsApp account. The transport handle is owned
// exclusively by the session and replaced wholesale on reconnect.
type Session struct {
	ID        string
	Status    string
	QRCode    string // present only while awaiting_qr
	Number    string // own number, present only while connected
	Transport transport.Transport

	SentMessages     []*MessageRecord
	ReceivedMessages []*MessageRecord
}

// AppendSent records an outgoing message, newest first.
func (s *Session) AppendSent(rec *MessageRecord) {
	s.SentMessages = prepend(s.SentMessages, rec)
}

// AppendReceived records an incoming message, newest first.
func (s *Session) AppendReceived(rec *MessageRecord) {
	s.ReceivedMessages = prepend(s.ReceivedMessages, rec)
}

func prepend(history []*MessageRecord, rec *MessageRecord) []*MessageRecord {
	history = append([]*MessageRecord{rec}, history...)
	if len(history) > HistoryCap {
		history = history[:HistoryCap]
	}
	return history
}

// SessionStatus is the read-only snapshot returned to the API layer.
type SessionStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Number string `json:"number,omitempty"`
	HasQR  bool   `json:"hasQR"`
}
