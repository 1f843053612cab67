package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:           srv.URL,
		GraphVersion:      "v19.0",
		PageID:            "page-1",
		ItemURL:           "https://facebook.test/item/",
		RequestsPerSecond: 1000,
	}, nil)
}

func TestClient_CreateListing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/page-1/marketplace_listings", r.URL.Path)
		assert.Equal(t, "Bearer page-token", r.Header.Get("Authorization"))

		var in ListingInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Desk lamp", in.Name)
		assert.Equal(t, "used_good", in.Condition)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"fb-77"}`)
	}))

	id, err := c.CreateListing(context.Background(), "page-token", ListingInput{
		Name: "Desk lamp", Price: "15.00", Currency: "EUR", Condition: "used_good",
	})
	require.NoError(t, err)
	assert.Equal(t, "fb-77", id)
	assert.Equal(t, "https://facebook.test/item/fb-77", c.ListingURL(id))
}

func TestClient_CreateListingGraphError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"message":"Missing permission","type":"OAuthException","code":200}}`)
	}))

	_, err := c.CreateListing(context.Background(), "tok", ListingInput{Name: "x"})
	var gerr *GraphError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, 200, gerr.Code)
	assert.Equal(t, http.StatusForbidden, gerr.StatusCode)
}

func TestClient_CreateListingNeedsPage(t *testing.T) {
	c := NewClient(Config{}, nil)
	_, err := c.CreateListing(context.Background(), "tok", ListingInput{})
	assert.Error(t, err)
}

func TestClient_GetListing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/fb-77", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"fb-77","status":"SOLD","view_count":12,"saved_count":2}`)
	}))

	st, err := c.GetListing(context.Background(), "tok", "fb-77")
	require.NoError(t, err)
	assert.Equal(t, StatusSold, st.Status)
	assert.Equal(t, 12, st.ViewCount)
	assert.Equal(t, 2, st.SavedCount)
}

func TestClient_GetListingNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Object does not exist","type":"GraphMethodException","code":100}}`)
	}))

	_, err := c.GetListing(context.Background(), "tok", "gone")
	assert.ErrorIs(t, err, ErrListingNotFound)
}
