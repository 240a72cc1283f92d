package transport

import (
	"context"
	"time"
)

// ContentKind tags the raw message payload shape coming off the wire.
type ContentKind int

const (
	KindText ContentKind = iota
	KindExtendedText
	KindImage
	KindVideo
	KindAudio
	KindDocument
	KindSticker
	KindUnknown
)

// QREvent dibroadcast setiap kali WhatsApp minta pairing baru.
type QREvent struct {
	Code string
}

// ConnectedEvent carries the identity of the account once the socket is open.
type ConnectedEvent struct {
	JID string
}

// ClosedEvent is emitted when the connection drops. LoggedOut distinguishes
// an explicit unlink (terminal) from every other close reason.
type ClosedEvent struct {
	LoggedOut bool
	Code      int
}

// MessageEvent is one inbound or outbound message upsert.
type MessageEvent struct {
	ID        string
	ChatJID   string
	Sender    string // number part of the chat JID
	PushName  string
	FromMe    bool
	IsGroup   bool
	Hidden    bool // anonymized (@lid) chat, real number needs resolving
	Timestamp time.Time

	Kind     ContentKind
	Text     string
	Caption  string
	FileName string
}

// EventHandler menerima semua event dari satu koneksi transport.
type EventHandler func(evt interface{})

// Transport is one live connection to the messaging provider. The session
// manager owns exactly one per session and replaces it wholesale on
// reconnect.
type Transport interface {
	Connect() error
	Disconnect()
	Logout(ctx context.Context) error
	// SendText delivers a text message to a digits-only destination number
	// and returns the provider-assigned message id.
	SendText(ctx context.Context, number, text string) (string, error)
	// ResolveNumber maps an anonymized chat JID to a real phone number.
	ResolveNumber(ctx context.Context, jid string) (string, error)
	AddEventHandler(h EventHandler)
}

// DialFunc opens a new Transport for a session using the credentials stored
// under credsDir.
type DialFunc func(sessionID, credsDir string) (Transport, error)
