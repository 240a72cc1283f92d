package trello

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.trello.com/1"

// Client is a thin REST client for the Trello API. Auth is key+token query
// params on every request.
type Client struct {
	APIKey  string
	Token   string
	BoardID string
	BaseURL string

	HTTPClient *http.Client
}

func NewClient(apiKey, token, boardID string) *Client {
	return &Client{
		APIKey:     apiKey,
		Token:      token,
		BoardID:    boardID,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is any non-2xx Trello response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello API %d: %s", e.StatusCode, e.Body)
}

type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Card struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Desc        string     `json:"desc"`
	ShortURL    string     `json:"shortUrl"`
	Due         *time.Time `json:"due"`
	DueComplete bool       `json:"dueComplete"`
	IDLabels    []string   `json:"idLabels"`
}

// CardUpdate is the PUT /cards/:id payload used by the engine.
type CardUpdate struct {
	DueComplete *bool  `json:"dueComplete,omitempty"`
	IDList      string `json:"idList,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("trello: bad path %q: %w", path, err)
	}
	q := u.Query()
	q.Set("key", c.APIKey)
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("trello: marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) GetBoard(ctx context.Context) (Board, error) {
	var board Board
	err := c.do(ctx, http.MethodGet, "/boards/"+c.BoardID+"?fields=id,name", nil, &board)
	return board, err
}

func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	var lists []List
	err := c.do(ctx, http.MethodGet, "/boards/"+c.BoardID+"/lists?fields=id,name,closed", nil, &lists)
	return lists, err
}

func (c *Client) GetLabels(ctx context.Context) ([]Label, error) {
	var labels []Label
	err := c.do(ctx, http.MethodGet, "/boards/"+c.BoardID+"/labels", nil, &labels)
	return labels, err
}

func (c *Client) GetCards(ctx context.Context) ([]Card, error) {
	var cards []Card
	err := c.do(ctx, http.MethodGet, "/boards/"+c.BoardID+"/cards?fields=name,desc,shortUrl,due,idLabels,dueComplete", nil, &cards)
	return cards, err
}

func (c *Client) CreateLabel(ctx context.Context, name, color string) (Label, error) {
	var label Label
	err := c.do(ctx, http.MethodPost, "/labels", map[string]string{
		"name":    name,
		"color":   color,
		"idBoard": c.BoardID,
	}, &label)
	return label, err
}

func (c *Client) AddLabelToCard(ctx context.Context, cardID, labelID string) error {
	return c.do(ctx, http.MethodPost, "/cards/"+cardID+"/idLabels", map[string]string{
		"value": labelID,
	}, nil)
}

func (c *Client) RemoveLabelFromCard(ctx context.Context, cardID, labelID string) error {
	return c.do(ctx, http.MethodDelete, "/cards/"+cardID+"/idLabels/"+labelID, nil, nil)
}

func (c *Client) UpdateCard(ctx context.Context, cardID string, update CardUpdate) error {
	return c.do(ctx, http.MethodPut, "/cards/"+cardID, update, nil)
}
