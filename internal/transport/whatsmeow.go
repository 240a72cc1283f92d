package transport

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
)

var nonDigits = regexp.MustCompile(`\D`)

// waTransport adapts a whatsmeow client to the Transport interface.
// Auto-reconnect is disabled; the session manager owns the reconnect policy.
type waTransport struct {
	sessionID string
	cli       *whatsmeow.Client
	handlers  []EventHandler
}

// Dial opens the per-session credential store (sqlite file under credsDir)
// and builds a client for the stored device, or a fresh one when the session
// has never paired.
func Dial(sessionID, credsDir string) (Transport, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(credsDir, "creds.db"))

	dbLog := waLog.Stdout("Database", "ERROR", true)
	container, err := sqlstore.New(context.Background(), "sqlite3", dsn, dbLog)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	// Set device name SEBELUM create device (global setting)
	store.DeviceProps.Os = proto.String("GOWA Trello")

	devices, err := container.GetAllDevices(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}

	var device *store.Device
	if len(devices) > 0 {
		device = devices[0]
	} else {
		device = container.NewDevice()
	}

	clientLog := waLog.Stdout("Client", "ERROR", true)
	cli := whatsmeow.NewClient(device, clientLog)
	cli.EnableAutoReconnect = false

	t := &waTransport{sessionID: sessionID, cli: cli}
	cli.AddEventHandler(t.translate)
	return t, nil
}

func (t *waTransport) AddEventHandler(h EventHandler) {
	t.handlers = append(t.handlers, h)
}

func (t *waTransport) dispatch(evt interface{}) {
	for _, h := range t.handlers {
		h(evt)
	}
}

// translate maps raw whatsmeow events onto the typed event stream.
func (t *waTransport) translate(raw interface{}) {
	switch evt := raw.(type) {

	case *events.QR:
		if len(evt.Codes) > 0 {
			t.dispatch(&QREvent{Code: evt.Codes[0]})
		}

	case *events.PairSuccess:
		fmt.Println("✓ Pair Success! Session:", t.sessionID)

	case *events.Connected:
		jid := ""
		if t.cli.Store.ID != nil {
			jid = t.cli.Store.ID.String()
		}
		t.dispatch(&ConnectedEvent{JID: jid})

	case *events.LoggedOut:
		t.dispatch(&ClosedEvent{LoggedOut: true, Code: int(evt.Reason)})

	case *events.StreamReplaced:
		t.dispatch(&ClosedEvent{})

	case *events.Disconnected:
		t.dispatch(&ClosedEvent{})

	case *events.Message:
		t.dispatch(translateMessage(evt))
	}
}

func translateMessage(evt *events.Message) *MessageEvent {
	chat := evt.Info.Chat
	out := &MessageEvent{
		ID:        evt.Info.ID,
		ChatJID:   chat.String(),
		Sender:    chat.User,
		PushName:  evt.Info.PushName,
		FromMe:    evt.Info.IsFromMe,
		IsGroup:   evt.Info.IsGroup || chat.Server == types.GroupServer,
		Hidden:    chat.Server == types.HiddenUserServer,
		Timestamp: evt.Info.Timestamp,
	}

	msg := evt.Message
	switch {
	case msg.GetConversation() != "":
		out.Kind = KindText
		out.Text = msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		out.Kind = KindExtendedText
		out.Text = msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		out.Kind = KindImage
		out.Caption = msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		out.Kind = KindVideo
		out.Caption = msg.GetVideoMessage().GetCaption()
	case msg.GetAudioMessage() != nil:
		out.Kind = KindAudio
	case msg.GetDocumentMessage() != nil:
		out.Kind = KindDocument
		out.FileName = msg.GetDocumentMessage().GetFileName()
	case msg.GetStickerMessage() != nil:
		out.Kind = KindSticker
	default:
		out.Kind = KindUnknown
	}
	return out
}

func (t *waTransport) Connect() error {
	return t.cli.Connect()
}

func (t *waTransport) Disconnect() {
	t.cli.Disconnect()
}

func (t *waTransport) Logout(ctx context.Context) error {
	if err := t.cli.Logout(ctx); err != nil {
		return err
	}
	// Logout tears the socket down without a close event from the library,
	// so emit the terminal close ourselves.
	t.dispatch(&ClosedEvent{LoggedOut: true})
	return nil
}

func (t *waTransport) SendText(ctx context.Context, number, text string) (string, error) {
	cleaned := nonDigits.ReplaceAllString(number, "")
	if cleaned == "" {
		return "", fmt.Errorf("invalid destination number: %q", number)
	}

	recipient := types.JID{User: cleaned, Server: types.DefaultUserServer}
	msg := &waE2E.Message{Conversation: proto.String(text)}

	resp, err := t.cli.SendMessage(ctx, recipient, msg)
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

func (t *waTransport) ResolveNumber(ctx context.Context, jid string) (string, error) {
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return "", err
	}
	if parsed.Server != types.HiddenUserServer {
		return parsed.User, nil
	}

	pn, err := t.cli.Store.LIDs.GetPNForLID(ctx, parsed)
	if err != nil {
		return "", err
	}
	if pn.IsEmpty() {
		return "", fmt.Errorf("no number mapping for %s", jid)
	}
	return pn.User, nil
}
