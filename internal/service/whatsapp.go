package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gowa-trello/internal/helper"
	"gowa-trello/internal/model"
	"gowa-trello/internal/transport"
	"gowa-trello/internal/trello"
	"gowa-trello/internal/ws"

	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrOffline           = errors.New("whatsapp offline")
	ErrSessionNotFound   = errors.New("session not found")
	ErrCredentialStorage = errors.New("credential storage error")
)

// Waktu tunggu sebelum reconnect setelah koneksi putus.
const reconnectDelay = 3 * time.Second

// Events older than startup minus this window are reconnect backlog and get
// dropped instead of reprocessed.
const backlogGrace = 60 * time.Second

// Confirmer is the slice of the Trello engine the manager needs.
type Confirmer interface {
	Configured() bool
	ProcessConfirmation(ctx context.Context, term, message, direction string) (*trello.ConfirmationResult, error)
}

// Manager owns every WhatsApp session: transport lifecycle, reconnect
// policy, message histories, and the hand-off of eligible messages to the
// confirmation engine.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session

	dial        transport.DialFunc
	sessionsDir string
	filters     *FilterStore
	confirmer   Confirmer
	realtime    ws.RealtimePublisher

	startup        time.Time
	reconnectDelay time.Duration
}

func NewManager(dial transport.DialFunc, sessionsDir string, filters *FilterStore, confirmer Confirmer, realtime ws.RealtimePublisher) *Manager {
	return &Manager{
		sessions:       make(map[string]*model.Session),
		dial:           dial,
		sessionsDir:    sessionsDir,
		filters:        filters,
		confirmer:      confirmer,
		realtime:       realtime,
		startup:        time.Now(),
		reconnectDelay: reconnectDelay,
	}
}

// StartAll boots every session with persisted credentials, or "default"
// when none exist yet.
func (m *Manager) StartAll() {
	entries, err := os.ReadDir(m.sessionsDir)
	if err != nil && !os.IsNotExist(err) {
		fmt.Println("⚠ Failed to read sessions dir:", err)
	}

	var started int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := m.Start(entry.Name()); err != nil {
			fmt.Printf("⚠ Failed to start session %s: %v\n", entry.Name(), err)
			continue
		}
		started++
	}

	if started == 0 {
		if _, err := m.Start("default"); err != nil {
			fmt.Println("⚠ Failed to start default session:", err)
		}
	}
}

// Start opens (or reopens) a session and returns a detached status
// snapshot; the live session stays behind the manager's mutex. Idempotent:
// an already connected session is left alone. A fresh transport replaces
// any previous one.
func (m *Manager) Start(sessionID string) (*model.SessionStatus, error) {
	if sessionID == "" {
		sessionID = "default"
	}

	m.mu.RLock()
	if sess, ok := m.sessions[sessionID]; ok && sess.Status == model.StatusConnected {
		snap := snapshot(sess)
		m.mu.RUnlock()
		return snap, nil
	}
	m.mu.RUnlock()

	authPath := filepath.Join(m.sessionsDir, sessionID)
	if err := os.MkdirAll(authPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialStorage, err)
	}

	t, err := m.dial(sessionID, authPath)
	if err != nil {
		return nil, fmt.Errorf("dial session %s: %w", sessionID, err)
	}

	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &model.Session{ID: sessionID, Status: model.StatusUninitialized}
		m.sessions[sessionID] = sess
	} else {
		if sess.Transport != nil {
			sess.Transport.Disconnect()
		}
		// a known session stays disconnected until the new transport
		// reports QR or connected
		sess.Status = model.StatusDisconnected
	}
	sess.Transport = t
	sess.QRCode = ""
	sess.Number = ""
	m.mu.Unlock()

	t.AddEventHandler(m.eventHandler(sessionID))

	if err := t.Connect(); err != nil {
		return nil, fmt.Errorf("connect session %s: %w", sessionID, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(sess), nil
}

// eventHandler drives one session's state machine off its transport events.
func (m *Manager) eventHandler(sessionID string) transport.EventHandler {
	return func(raw interface{}) {
		switch evt := raw.(type) {

		case *transport.QREvent:
			m.mu.Lock()
			sess, ok := m.sessions[sessionID]
			if ok {
				sess.Status = model.StatusAwaitingQR
				sess.QRCode = evt.Code
			}
			m.mu.Unlock()
			if !ok {
				return
			}
			fmt.Printf("📱 [%s] QR code generated\n", sessionID)
			if m.realtime != nil {
				m.realtime.Publish(ws.WsEvent{
					Event: ws.EventQRGenerated,
					Data:  ws.QRGeneratedData{SessionID: sessionID, QRData: evt.Code},
				})
			}
			m.publishStatus(sessionID)

		case *transport.ConnectedEvent:
			number := helper.ExtractPhoneFromJID(evt.JID)
			m.mu.Lock()
			sess, ok := m.sessions[sessionID]
			if ok {
				sess.Status = model.StatusConnected
				sess.QRCode = ""
				sess.Number = number
			}
			m.mu.Unlock()
			if !ok {
				return
			}
			fmt.Printf("✓ [%s] WhatsApp connected: %s\n", sessionID, number)
			m.publishStatus(sessionID)

		case *transport.ClosedEvent:
			m.handleClosed(sessionID, evt)

		case *transport.MessageEvent:
			m.handleMessage(sessionID, evt)
		}
	}
}

func (m *Manager) handleClosed(sessionID string, evt *transport.ClosedEvent) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	sess.Status = model.StatusDisconnected
	sess.QRCode = ""
	sess.Number = ""
	if evt.LoggedOut {
		delete(m.sessions, sessionID)
		if sess.Transport != nil {
			sess.Transport.Disconnect()
		}
	}
	m.mu.Unlock()

	if evt.LoggedOut {
		fmt.Printf("🚪 [%s] Logged out, purging credentials\n", sessionID)
		if err := os.RemoveAll(filepath.Join(m.sessionsDir, sessionID)); err != nil {
			fmt.Printf("⚠ [%s] Failed to purge credentials: %v\n", sessionID, err)
		}
		if m.realtime != nil {
			m.realtime.Publish(ws.WsEvent{
				Event: ws.EventSessionStatusChanged,
				Data:  ws.SessionStatusChangedData{SessionID: sessionID, Status: "logged_out"},
			})
		}
		return
	}

	fmt.Printf("📡 [%s] Connection closed (code %d), reconnecting in %s\n", sessionID, evt.Code, m.reconnectDelay)
	m.publishStatus(sessionID)
	go m.reconnectLater(sessionID)
}

// reconnectLater re-establishes the session after a fixed delay, unless a
// logout removed it from the registry in the meantime.
func (m *Manager) reconnectLater(sessionID string) {
	time.Sleep(m.reconnectDelay)

	m.mu.RLock()
	_, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	if _, err := m.Start(sessionID); err != nil {
		fmt.Printf("⚠ [%s] Reconnect failed: %v\n", sessionID, err)
	}
}

// handleMessage runs the classification + reconciliation pipeline for one
// message upsert. Confirmation work is spawned fire-and-forget so a slow
// Trello call never blocks the event stream.
func (m *Manager) handleMessage(sessionID string, evt *transport.MessageEvent) {
	if evt.IsGroup {
		return
	}
	// skip backlog replayed on reconnect
	if evt.Timestamp.Before(m.startup.Add(-backlogGrace)) {
		return
	}

	content, mediaType := ClassifyMessage(evt)

	if m.filters.Eligible(content, mediaType) {
		terms := []string{evt.Sender}
		if evt.PushName != "" && evt.PushName != evt.Sender {
			terms = append(terms, evt.PushName)
		}
		if evt.Hidden {
			if resolved := m.resolveHiddenNumber(sessionID, evt.ChatJID); resolved != "" && resolved != evt.Sender {
				terms = append(terms, resolved)
			}
		}

		direction := model.DirectionReceived
		if evt.FromMe {
			direction = model.DirectionSent
		}

		fmt.Printf("%s [%s] Filter passed: %.30s\n", directionGlyph(evt.FromMe), sessionID, content)
		for _, term := range terms {
			go func(term string) {
				if _, err := m.confirmer.ProcessConfirmation(context.Background(), term, content, direction); err != nil {
					fmt.Printf("⚠ [%s] Trello confirmation failed for %s: %v\n", sessionID, term, err)
				}
			}(term)
		}
	}

	if !evt.FromMe {
		rec := &model.MessageRecord{
			ID:        evt.ID,
			Direction: model.DirectionReceived,
			Number:    evt.Sender,
			PushName:  evt.PushName,
			Content:   content,
			MediaType: mediaType,
			Timestamp: time.Now(),
		}
		m.mu.Lock()
		if sess, ok := m.sessions[sessionID]; ok {
			sess.AppendReceived(rec)
		}
		m.mu.Unlock()
	}
}

// resolveHiddenNumber maps an anonymized chat id to a real number,
// best-effort. Failures fall back to the original term.
func (m *Manager) resolveHiddenNumber(sessionID, chatJID string) string {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	var t transport.Transport
	if ok {
		t = sess.Transport
	}
	m.mu.RUnlock()
	if t == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := t.ResolveNumber(ctx, chatJID)
	if err != nil {
		return ""
	}
	return resolved
}

// SendText delivers a text message through a connected session and records
// it in the sent history. The caller chains the Trello confirmation itself.
func (m *Manager) SendText(ctx context.Context, sessionID, number, text string) (*model.MessageRecord, error) {
	if sessionID == "" {
		sessionID = "default"
	}

	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	var t transport.Transport
	connected := false
	if ok {
		t = sess.Transport
		connected = sess.Status == model.StatusConnected
	}
	m.mu.RUnlock()

	if !ok || !connected || t == nil {
		return nil, ErrOffline
	}

	id, err := t.SendText(ctx, number, text)
	if err != nil {
		return nil, err
	}

	rec := &model.MessageRecord{
		ID:        id,
		Direction: model.DirectionSent,
		Number:    helper.DigitsOnly(number),
		Content:   text,
		MediaType: model.MediaText,
		Timestamp: time.Now(),
	}

	m.mu.Lock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.AppendSent(rec)
	}
	m.mu.Unlock()

	return rec, nil
}

// Logout asks the transport to unlink the account. The resulting close
// event purges credentials and removes the session from the registry.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = "default"
	}

	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	var t transport.Transport
	if ok {
		t = sess.Transport
	}
	m.mu.RUnlock()

	if !ok || t == nil {
		return ErrSessionNotFound
	}
	return t.Logout(ctx)
}

// GetStatus returns a read-only snapshot of one session.
func (m *Manager) GetStatus(sessionID string) (*model.SessionStatus, error) {
	if sessionID == "" {
		sessionID = "default"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return snapshot(sess), nil
}

// GetAllStatuses returns snapshots of every session.
func (m *Manager) GetAllStatuses() []*model.SessionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]*model.SessionStatus, 0, len(m.sessions))
	for _, sess := range m.sessions {
		statuses = append(statuses, snapshot(sess))
	}
	return statuses
}

// GetQRCode renders the pending challenge as a PNG data URL, or "" when the
// session is connected or no challenge is pending.
func (m *Manager) GetQRCode(sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = "default"
	}

	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	code := ""
	if ok && sess.Status != model.StatusConnected {
		code = sess.QRCode
	}
	m.mu.RUnlock()

	if !ok {
		return "", ErrSessionNotFound
	}
	if code == "" {
		return "", nil
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// GetSentMessages returns a copy of the sent history, newest first.
func (m *Manager) GetSentMessages(sessionID string) ([]*model.MessageRecord, error) {
	return m.history(sessionID, true)
}

// GetReceivedMessages returns a copy of the received history, newest first.
func (m *Manager) GetReceivedMessages(sessionID string) ([]*model.MessageRecord, error) {
	return m.history(sessionID, false)
}

func (m *Manager) history(sessionID string, sent bool) ([]*model.MessageRecord, error) {
	if sessionID == "" {
		sessionID = "default"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	src := sess.ReceivedMessages
	if sent {
		src = sess.SentMessages
	}
	return append([]*model.MessageRecord{}, src...), nil
}

func (m *Manager) publishStatus(sessionID string) {
	if m.realtime == nil {
		return
	}

	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	var data ws.SessionStatusChangedData
	if ok {
		data = ws.SessionStatusChangedData{
			SessionID: sessionID,
			Status:    sess.Status,
			Number:    sess.Number,
			HasQR:     sess.QRCode != "",
		}
	}
	m.mu.RUnlock()
	if !ok {
		return
	}

	m.realtime.Publish(ws.WsEvent{Event: ws.EventSessionStatusChanged, Data: data})
}

func snapshot(sess *model.Session) *model.SessionStatus {
	return &model.SessionStatus{
		ID:     sess.ID,
		Status: sess.Status,
		Number: sess.Number,
		HasQR:  sess.QRCode != "",
	}
}

func directionGlyph(fromMe bool) string {
	if fromMe {
		return "📤"
	}
	return "📥"
}
