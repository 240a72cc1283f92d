package trello

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"gowa-trello/internal/model"
	"gowa-trello/internal/ws"

	"github.com/google/uuid"
)

// ActionLog capacity, entry paling lama dibuang.
const maxActions = 100

var nonDigits = regexp.MustCompile(`\D`)

// ErrNotConfigured is returned by board lookups when no credentials are set.
var ErrNotConfigured = errors.New("trello not configured")

// API is the narrow board-client surface the engine needs. *Client satisfies
// it; tests run on fakes.
type API interface {
	GetBoard(ctx context.Context) (Board, error)
	GetLists(ctx context.Context) ([]List, error)
	GetLabels(ctx context.Context) ([]Label, error)
	GetCards(ctx context.Context) ([]Card, error)
	CreateLabel(ctx context.Context, name, color string) (Label, error)
	AddLabelToCard(ctx context.Context, cardID, labelID string) error
	RemoveLabelFromCard(ctx context.Context, cardID, labelID string) error
	UpdateCard(ctx context.Context, cardID string, update CardUpdate) error
}

// ConfirmationResult summarizes one ProcessConfirmation run.
type ConfirmationResult struct {
	CardsConfirmed int                   `json:"cardsConfirmed"`
	ConfirmedCards []model.ConfirmedCard `json:"confirmedCards"`
}

// Engine matches phone numbers against board cards and applies the
// confirmation mutation (label + move to done list + dueComplete).
type Engine struct {
	api          API // nil = integration disabled
	targetListID string
	realtime     ws.RealtimePublisher

	now func() time.Time

	mu      sync.Mutex
	actions []*model.ConfirmationAction
}

func NewEngine(api API, targetListID string, realtime ws.RealtimePublisher) *Engine {
	return &Engine{
		api:          api,
		targetListID: targetListID,
		realtime:     realtime,
		now:          time.Now,
	}
}

// Configured reports whether the board integration is active.
func (e *Engine) Configured() bool {
	return e.api != nil
}

// BoardInfo returns the board metadata for the status endpoint.
func (e *Engine) BoardInfo(ctx context.Context) (Board, error) {
	if !e.Configured() {
		return Board{}, ErrNotConfigured
	}
	return e.api.GetBoard(ctx)
}

// Lists returns the board's lists.
func (e *Engine) Lists(ctx context.Context) ([]List, error) {
	if !e.Configured() {
		return nil, ErrNotConfigured
	}
	return e.api.GetLists(ctx)
}

// FindCards returns every card whose title+description contains the digits
// of term. Over 8 digits, the last 8 also count as a match so national
// prefix variations still hit.
func (e *Engine) FindCards(ctx context.Context, term string) ([]Card, error) {
	if !e.Configured() {
		return nil, nil
	}

	clean := nonDigits.ReplaceAllString(term, "")
	if clean == "" {
		return nil, nil
	}

	cards, err := e.api.GetCards(ctx)
	if err != nil {
		return nil, err
	}

	var found []Card
	for _, card := range cards {
		content := nonDigits.ReplaceAllString(card.Name+" "+card.Desc, "")
		if strings.Contains(content, clean) ||
			(len(clean) > 8 && strings.Contains(content, clean[len(clean)-8:])) {
			found = append(found, card)
		}
	}
	return found, nil
}

// ProcessConfirmation locates cards matching term and marks them confirmed.
// Board failures per card are logged and swallowed; the run still records
// one action entry. Safe to invoke repeatedly for the same card.
func (e *Engine) ProcessConfirmation(ctx context.Context, term, message, direction string) (*ConfirmationResult, error) {
	if !e.Configured() || direction == "failed" {
		return &ConfirmationResult{}, nil
	}

	cards, err := e.FindCards(ctx, term)
	if err != nil {
		// attempt died before producing a result, nothing gets logged
		return nil, fmt.Errorf("find cards for %q: %w", term, err)
	}

	var confirmed []model.ConfirmedCard
	for _, card := range cards {
		color := e.labelColorFor(card)

		if err := e.updateCardLabel(ctx, card, color); err != nil {
			fmt.Printf("⚠ Label update failed for card %s: %v\n", card.ID, err)
		}

		update := CardUpdate{DueComplete: boolPtr(true)}
		if e.targetListID != "" {
			update.IDList = e.targetListID
		}
		if err := e.api.UpdateCard(ctx, card.ID, update); err != nil {
			fmt.Printf("⚠ Move/complete failed for card %s: %v\n", card.ID, err)
		}

		confirmed = append(confirmed, model.ConfirmedCard{
			ID:      card.ID,
			Name:    card.Name,
			CardURL: card.ShortURL,
		})
	}

	action := &model.ConfirmationAction{
		ID:             uuid.NewString(),
		Timestamp:      e.now(),
		Number:         term,
		CardsConfirmed: len(confirmed),
		Cards:          confirmed,
	}
	e.appendAction(action)

	if e.realtime != nil {
		e.realtime.Publish(ws.WsEvent{
			Event: ws.EventConfirmationRecorded,
			Data:  action,
		})
	}

	return &ConfirmationResult{
		CardsConfirmed: len(confirmed),
		ConfirmedCards: confirmed,
	}, nil
}

// labelColorFor picks green, or yellow for an overdue card that was never
// marked complete.
func (e *Engine) labelColorFor(card Card) string {
	if card.Due != nil && card.Due.Before(e.now()) && !card.DueComplete {
		return "yellow"
	}
	return "green"
}

// updateCardLabel strips the card's current labels and attaches a single
// board label of the wanted color, creating it when the board has none.
func (e *Engine) updateCardLabel(ctx context.Context, card Card, color string) error {
	for _, labelID := range card.IDLabels {
		// a label may already be gone, keep going
		if err := e.api.RemoveLabelFromCard(ctx, card.ID, labelID); err != nil {
			fmt.Printf("⚠ Could not remove label %s from card %s: %v\n", labelID, card.ID, err)
		}
	}

	labels, err := e.api.GetLabels(ctx)
	if err != nil {
		return fmt.Errorf("list board labels: %w", err)
	}

	var target *Label
	for i := range labels {
		if labels[i].Color == color {
			target = &labels[i]
			break
		}
	}

	if target == nil {
		created, err := e.api.CreateLabel(ctx, labelNameForColor(color), color)
		if err != nil {
			return fmt.Errorf("create %s label: %w", color, err)
		}
		target = &created
	}

	return e.api.AddLabelToCard(ctx, card.ID, target.ID)
}

func labelNameForColor(color string) string {
	if color == "green" {
		return "Confirmado"
	}
	return "Expirado/Atrasado"
}

func (e *Engine) appendAction(action *model.ConfirmationAction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.actions = append([]*model.ConfirmationAction{action}, e.actions...)
	if len(e.actions) > maxActions {
		e.actions = e.actions[:maxActions]
	}
}

// Actions returns a paginated slice of the action log, newest first, plus
// the total count. Limit defaults to 20, capped at 100.
func (e *Engine) Actions(limit, offset int) ([]*model.ConfirmationAction, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxActions {
		limit = maxActions
	}
	if offset < 0 {
		offset = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	total := len(e.actions)
	if offset >= total {
		return []*model.ConfirmationAction{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*model.ConfirmationAction, end-offset)
	copy(page, e.actions[offset:end])
	return page, total
}

// ResolveConfirmedList finds the done-list id by case-insensitive name
// containment, original boot behavior.
func ResolveConfirmedList(ctx context.Context, api API, name string) (List, bool, error) {
	lists, err := api.GetLists(ctx)
	if err != nil {
		return List{}, false, err
	}
	lower := strings.ToLower(name)
	for _, list := range lists {
		if strings.Contains(strings.ToLower(list.Name), lower) {
			return list, true, nil
		}
	}
	// not found: caller logs the available columns
	return List{}, false, nil
}

func boolPtr(v bool) *bool { return &v }
