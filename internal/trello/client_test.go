package trello

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "test-token", "board-1")
	c.BaseURL = srv.URL
	return c
}

func TestClientAuthQueryParams(t *testing.T) {
	var gotKey, gotToken string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotToken = r.URL.Query().Get("token")
		json.NewEncoder(w).Encode(Board{ID: "board-1", Name: "Cobranças"})
	})

	board, err := c.GetBoard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cobranças", board.Name)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "test-token", gotToken)
}

func TestClientErrorResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid token"))
	})

	_, err := c.GetCards(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid token")
}

func TestClientGetCards(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/boards/board-1/cards", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "dueComplete")
		json.NewEncoder(w).Encode([]Card{
			{ID: "c1", Name: "Invoice 5511999998888", ShortURL: "https://trello.com/c/abc"},
		})
	})

	cards, err := c.GetCards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Invoice 5511999998888", cards[0].Name)
}

func TestClientUpdateCard(t *testing.T) {
	var gotMethod string
	var gotBody map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		assert.Equal(t, "/cards/c1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte("{}"))
	})

	err := c.UpdateCard(context.Background(), "c1", CardUpdate{
		DueComplete: boolPtr(true),
		IDList:      "list-done",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, true, gotBody["dueComplete"])
	assert.Equal(t, "list-done", gotBody["idList"])
}

func TestClientCreateLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/labels", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "board-1", body["idBoard"])
		json.NewEncoder(w).Encode(Label{ID: "lbl-1", Name: body["name"], Color: body["color"]})
	})

	label, err := c.CreateLabel(context.Background(), "Confirmado", "green")
	require.NoError(t, err)
	assert.Equal(t, "lbl-1", label.ID)
	assert.Equal(t, "green", label.Color)
}

func TestClientRemoveLabelFromCard(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
	})

	err := c.RemoveLabelFromCard(context.Background(), "c1", "lbl-1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/cards/c1/idLabels/lbl-1", gotPath)
}
