package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gowa-trello/internal/model"
	"gowa-trello/internal/transport"
	"gowa-trello/internal/trello"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	handler transport.EventHandler

	connects     int
	connectErr   error
	disconnected bool

	sentNumber string
	sentText   string
	sendErr    error

	resolved   string
	resolveErr error
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

// Logout mirrors the real adapter: a successful logout surfaces as a
// logged-out close event.
func (f *fakeTransport) Logout(ctx context.Context) error {
	f.emit(&transport.ClosedEvent{LoggedOut: true})
	return nil
}

func (f *fakeTransport) SendText(ctx context.Context, number, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentNumber = number
	f.sentText = text
	return "MSG-1", nil
}

func (f *fakeTransport) ResolveNumber(ctx context.Context, jid string) (string, error) {
	return f.resolved, f.resolveErr
}

func (f *fakeTransport) AddEventHandler(h transport.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeTransport) wasDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

func (f *fakeTransport) emit(evt interface{}) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

type confirmCall struct {
	term      string
	message   string
	direction string
}

type fakeConfirmer struct {
	mu    sync.Mutex
	calls []confirmCall
}

func (f *fakeConfirmer) Configured() bool { return true }

func (f *fakeConfirmer) ProcessConfirmation(ctx context.Context, term, message, direction string) (*trello.ConfirmationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, confirmCall{term, message, direction})
	return &trello.ConfirmationResult{}, nil
}

func (f *fakeConfirmer) snapshot() []confirmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]confirmCall{}, f.calls...)
}

type harness struct {
	m         *Manager
	confirmer *fakeConfirmer
	dir       string

	mu         sync.Mutex
	transports []*fakeTransport
	dialErr    error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		confirmer: &fakeConfirmer{},
		dir:       t.TempDir(),
	}
	dial := func(sessionID, credsDir string) (transport.Transport, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.dialErr != nil {
			return nil, h.dialErr
		}
		ft := &fakeTransport{}
		h.transports = append(h.transports, ft)
		return ft, nil
	}
	h.m = NewManager(dial, h.dir, NewFilterStore(nil, nil), h.confirmer, nil)
	h.m.reconnectDelay = 20 * time.Millisecond
	return h
}

func (h *harness) dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transports)
}

func (h *harness) last() *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transports[len(h.transports)-1]
}

func TestStartDefaultSession(t *testing.T) {
	h := newHarness(t)

	sess, err := h.m.Start("")
	require.NoError(t, err)
	assert.Equal(t, "default", sess.ID)
	assert.Equal(t, model.StatusUninitialized, sess.Status)
	assert.Equal(t, 1, h.last().connects)

	// credential directory created up front
	info, err := os.Stat(filepath.Join(h.dir, "default"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStartReturnsDetachedSnapshot(t *testing.T) {
	h := newHarness(t)

	snap, err := h.m.Start("default")
	require.NoError(t, err)

	// transport events mutate the live session while the caller still
	// holds the return value; the snapshot must be safe to read unlocked
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.last().emit(&transport.QREvent{Code: "2@abc"})
		h.last().emit(&transport.ConnectedEvent{JID: "5511999998888@s.whatsapp.net"})
	}()

	for i := 0; i < 1000; i++ {
		_ = snap.Status
		_ = snap.HasQR
		_ = snap.Number
	}
	<-done

	assert.Equal(t, model.StatusUninitialized, snap.Status, "returned value is a point-in-time copy")

	status, err := h.m.GetStatus("default")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, status.Status)
}

func TestStartIdempotentWhenConnected(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("work")
	require.NoError(t, err)
	h.last().emit(&transport.ConnectedEvent{JID: "5511999998888:12@s.whatsapp.net"})

	_, err = h.m.Start("work")
	require.NoError(t, err)
	assert.Equal(t, 1, h.dials(), "a connected session must not be redialed")
}

func TestStartReplacesStaleTransport(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("work")
	require.NoError(t, err)
	first := h.last()
	first.emit(&transport.ClosedEvent{})

	// give the scheduled reconnect time to run
	assert.Eventually(t, func() bool { return h.dials() == 2 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, first.wasDisconnected, time.Second, 10*time.Millisecond)
}

func TestRestartKeepsDisconnectedStatus(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.ConnectedEvent{JID: "5511999998888@s.whatsapp.net"})
	h.last().emit(&transport.ClosedEvent{})

	assert.Eventually(t, func() bool { return h.dials() == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// no uninitialized detour while the reconnect is in flight
	status, err := h.m.GetStatus("default")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, status.Status)
}

func TestStartDialError(t *testing.T) {
	h := newHarness(t)
	h.dialErr = errors.New("no device")

	_, err := h.m.Start("work")
	require.Error(t, err)

	_, err = h.m.GetStatus("work")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestQRLifecycle(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.QREvent{Code: "2@abc,def,ghi"})

	status, err := h.m.GetStatus("default")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingQR, status.Status)
	assert.True(t, status.HasQR)

	qr, err := h.m.GetQRCode("default")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))

	// pairing succeeded: QR is gone, number is captured
	h.last().emit(&transport.ConnectedEvent{JID: "5511999998888:12@s.whatsapp.net"})

	status, err = h.m.GetStatus("default")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, status.Status)
	assert.Equal(t, "5511999998888", status.Number)
	assert.False(t, status.HasQR)

	qr, err = h.m.GetQRCode("default")
	require.NoError(t, err)
	assert.Empty(t, qr)
}

func TestGetQRCodeUnknownSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.GetQRCode("ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLogoutPurgesSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.ConnectedEvent{JID: "5511999998888@s.whatsapp.net"})

	credsFile := filepath.Join(h.dir, "default", "creds.db")
	require.NoError(t, os.WriteFile(credsFile, []byte("x"), 0o600))

	require.NoError(t, h.m.Logout(context.Background(), "default"))

	_, err = h.m.GetStatus("default")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = os.Stat(filepath.Join(h.dir, "default"))
	assert.True(t, os.IsNotExist(err), "credential directory must be purged")

	// no reconnect for a logged-out session
	time.Sleep(3 * h.m.reconnectDelay)
	assert.Equal(t, 1, h.dials())
}

func TestLogoutUnknownSession(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.m.Logout(context.Background(), "ghost"), ErrSessionNotFound)
}

func TestSendTextRequiresConnection(t *testing.T) {
	h := newHarness(t)

	t.Run("unknown session", func(t *testing.T) {
		_, err := h.m.SendText(context.Background(), "ghost", "5511999998888", "oi")
		assert.ErrorIs(t, err, ErrOffline)
	})

	t.Run("session awaiting qr", func(t *testing.T) {
		_, err := h.m.Start("default")
		require.NoError(t, err)
		h.last().emit(&transport.QREvent{Code: "2@abc"})

		_, err = h.m.SendText(context.Background(), "default", "5511999998888", "oi")
		assert.ErrorIs(t, err, ErrOffline)
	})
}

func TestSendTextRecordsHistory(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.ConnectedEvent{JID: "5511999998888@s.whatsapp.net"})

	rec, err := h.m.SendText(context.Background(), "default", "+55 (11) 98888-7777", "Pedido confirmado")
	require.NoError(t, err)
	assert.Equal(t, "MSG-1", rec.ID)
	assert.Equal(t, model.DirectionSent, rec.Direction)
	assert.Equal(t, "5511988887777", rec.Number, "stored number is digits only")
	assert.Equal(t, model.MediaText, rec.MediaType)

	sent, err := h.m.GetSentMessages("default")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, rec, sent[0])
}

func TestHandleMessageSkipsGroups(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.MessageEvent{
		ID:        "m1",
		IsGroup:   true,
		Sender:    "5511999998888",
		Kind:      transport.KindText,
		Text:      "pago",
		Timestamp: time.Now(),
	})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.confirmer.snapshot())

	received, err := h.m.GetReceivedMessages("default")
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestHandleMessageSkipsBacklog(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.MessageEvent{
		ID:        "m1",
		Sender:    "5511999998888",
		Kind:      transport.KindText,
		Text:      "pago",
		Timestamp: time.Now().Add(-5 * time.Minute),
	})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.confirmer.snapshot())

	received, err := h.m.GetReceivedMessages("default")
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestHandleMessageConfirmsAndRecords(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.MessageEvent{
		ID:        "m1",
		Sender:    "5511999998888",
		PushName:  "Maria Silva",
		Kind:      transport.KindText,
		Text:      "pagamento feito",
		Timestamp: time.Now(),
	})

	// one attempt per search term, sender number plus push name
	require.Eventually(t, func() bool { return len(h.confirmer.snapshot()) == 2 }, time.Second, 10*time.Millisecond)

	terms := map[string]bool{}
	for _, call := range h.confirmer.snapshot() {
		terms[call.term] = true
		assert.Equal(t, "pagamento feito", call.message)
		assert.Equal(t, model.DirectionReceived, call.direction)
	}
	assert.True(t, terms["5511999998888"])
	assert.True(t, terms["Maria Silva"])

	received, err := h.m.GetReceivedMessages("default")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "m1", received[0].ID)
	assert.Equal(t, "pagamento feito", received[0].Content)
	assert.Equal(t, model.MediaText, received[0].MediaType)
}

func TestHandleMessageFromMe(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.MessageEvent{
		ID:        "m1",
		FromMe:    true,
		Sender:    "5511999998888",
		Kind:      transport.KindText,
		Text:      "cobrança enviada",
		Timestamp: time.Now(),
	})

	require.Eventually(t, func() bool { return len(h.confirmer.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, model.DirectionSent, h.confirmer.snapshot()[0].direction)

	// own messages never land in the received history
	received, err := h.m.GetReceivedMessages("default")
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestHandleMessageResolvesHiddenNumber(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().resolved = "5511988887777"
	h.last().emit(&transport.MessageEvent{
		ID:        "m1",
		Sender:    "123456789012345",
		ChatJID:   "123456789012345@lid",
		Hidden:    true,
		Kind:      transport.KindText,
		Text:      "pago",
		Timestamp: time.Now(),
	})

	require.Eventually(t, func() bool { return len(h.confirmer.snapshot()) == 2 }, time.Second, 10*time.Millisecond)

	terms := map[string]bool{}
	for _, call := range h.confirmer.snapshot() {
		terms[call.term] = true
	}
	assert.True(t, terms["123456789012345"])
	assert.True(t, terms["5511988887777"], "resolved real number joins the search terms")
}

func TestHandleMessageFilteredOutStillRecorded(t *testing.T) {
	h := newHarness(t)
	h.m.filters = NewFilterStore([]string{"pago"}, nil)

	_, err := h.m.Start("default")
	require.NoError(t, err)
	h.last().emit(&transport.MessageEvent{
		ID:        "m1",
		Sender:    "5511999998888",
		Kind:      transport.KindText,
		Text:      "bom dia",
		Timestamp: time.Now(),
	})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.confirmer.snapshot(), "filtered message never reaches the board")

	received, err := h.m.GetReceivedMessages("default")
	require.NoError(t, err)
	require.Len(t, received, 1, "history keeps every incoming message regardless of filters")
}

func TestReceivedHistoryCap(t *testing.T) {
	h := newHarness(t)
	h.m.filters = NewFilterStore([]string{"никогда"}, nil) // keep the confirmer quiet

	_, err := h.m.Start("default")
	require.NoError(t, err)
	ft := h.last()

	for i := 0; i < model.HistoryCap+5; i++ {
		ft.emit(&transport.MessageEvent{
			ID:        fmt.Sprintf("m%d", i),
			Sender:    "5511999998888",
			Kind:      transport.KindText,
			Text:      "oi",
			Timestamp: time.Now(),
		})
	}

	received, err := h.m.GetReceivedMessages("default")
	require.NoError(t, err)
	require.Len(t, received, model.HistoryCap)
	// newest first, oldest entries evicted
	assert.Equal(t, fmt.Sprintf("m%d", model.HistoryCap+4), received[0].ID)
	assert.Equal(t, "m5", received[model.HistoryCap-1].ID)
}

func TestStartAllBootsPersistedSessions(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(filepath.Join(h.dir, "sales"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(h.dir, "support"), 0o755))

	h.m.StartAll()

	assert.Equal(t, 2, h.dials())
	statuses := h.m.GetAllStatuses()
	ids := map[string]bool{}
	for _, s := range statuses {
		ids[s.ID] = true
	}
	assert.True(t, ids["sales"])
	assert.True(t, ids["support"])
}

func TestStartAllFallsBackToDefault(t *testing.T) {
	h := newHarness(t)

	h.m.StartAll()

	assert.Equal(t, 1, h.dials())
	_, err := h.m.GetStatus("default")
	assert.NoError(t, err)
}
