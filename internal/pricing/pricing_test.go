package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/listforge/internal/market"
	"github.com/guarzo/listforge/internal/model"
	"github.com/guarzo/listforge/internal/store"
	"github.com/guarzo/listforge/internal/testutil"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type reasonerFunc func(ctx context.Context, req Request) (*Suggestion, error)

func (f reasonerFunc) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	return f(ctx, req)
}

type sourceFunc func(ctx context.Context, q market.Query) (*market.Snapshot, error)

func (f sourceFunc) Snapshot(ctx context.Context, q market.Query) (*market.Snapshot, error) {
	return f(ctx, q)
}

func activeListing(price string) model.Listing {
	return model.Listing{
		ID:          "l1",
		UserID:      "u1",
		Marketplace: model.MarketplaceEbay,
		Status:      model.ListingStatusActive,
		Price:       decimal.RequireFromString(price),
		Currency:    "EUR",
		Title:       "Desk lamp",
		CreatedAt:   now.Add(-10 * 24 * time.Hour),
	}
}

// seedSales stores n sold listings on a marketplace for u1
func seedSales(t *testing.T, s store.Store, m model.MarketplaceID, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", m, i)
		created := now.Add(-30 * 24 * time.Hour)
		require.NoError(t, s.SaveListing(ctx, &model.Listing{
			ID: id, UserID: "u1", Marketplace: m, Status: model.ListingStatusActive,
			Price: decimal.NewFromInt(20), CreatedAt: created,
		}))
		soldAt := created.Add(time.Duration(i+1) * 24 * time.Hour)
		_, err := s.TransitionListing(ctx, id, model.ListingStatusActive, model.ListingStatusSold, soldAt, &model.SaleTransaction{
			ID: "tx-" + id, ListingID: id, UserID: "u1", Marketplace: m,
			SalePrice: decimal.NewFromInt(20), ListingCreatedAt: created, SoldAt: soldAt,
		})
		require.NoError(t, err)
	}
}

func TestSuggest_FallbackOnFailure(t *testing.T) {
	failing := reasonerFunc(func(context.Context, Request) (*Suggestion, error) {
		return nil, errors.New("service unavailable")
	})
	o := NewOptimizer(store.NewMemory(), nil, failing, WithClock(func() time.Time { return now }))

	got := o.Suggest(context.Background(), activeListing("100"), nil)

	assert.True(t, got.SuggestedPrice.Equal(decimal.NewFromInt(95)), got.SuggestedPrice.String())
	assert.Equal(t, 0.7, got.Confidence)
	assert.Equal(t, FallbackReasoning, got.Reasoning)
	assert.True(t, got.Fallback)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, now, got.CreatedAt)
}

func TestSuggest_FallbackIsExact(t *testing.T) {
	o := NewOptimizer(store.NewMemory(), nil, nil)
	got := o.Suggest(context.Background(), activeListing("19.99"), nil)
	assert.Equal(t, "18.9905", got.SuggestedPrice.String())
	assert.True(t, got.Fallback)
}

func TestSuggest_InvalidAnswerFallsBack(t *testing.T) {
	tests := []struct {
		name string
		s    Suggestion
	}{
		{"zero price", Suggestion{SuggestedPrice: decimal.Zero, Confidence: 0.5}},
		{"negative price", Suggestion{SuggestedPrice: decimal.NewFromInt(-3), Confidence: 0.5}},
		{"confidence above one", Suggestion{SuggestedPrice: decimal.NewFromInt(80), Confidence: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reasonerFunc(func(context.Context, Request) (*Suggestion, error) {
				s := tt.s
				return &s, nil
			})
			got := NewOptimizer(store.NewMemory(), nil, r).Suggest(context.Background(), activeListing("100"), nil)
			assert.True(t, got.Fallback)
			assert.Equal(t, FallbackConfidence, got.Confidence)
		})
	}
}

func TestSuggest_EmptyAnswerFallsBack(t *testing.T) {
	r := reasonerFunc(func(context.Context, Request) (*Suggestion, error) {
		return nil, nil
	})
	o := NewOptimizer(store.NewMemory(), nil, r, WithClock(func() time.Time { return now }))

	var got *model.PriceOptimization
	require.NotPanics(t, func() {
		got = o.Suggest(context.Background(), activeListing("100"), nil)
	})
	assert.True(t, got.Fallback)
	assert.True(t, got.SuggestedPrice.Equal(decimal.NewFromInt(95)), got.SuggestedPrice.String())

	var empty *Suggestion
	assert.ErrorIs(t, empty.Validate(), ErrInvalidSuggestion)
}

func TestSuggest_UsesRecentSameMarketplaceSales(t *testing.T) {
	s := store.NewMemory()
	seedSales(t, s, model.MarketplaceEbay, 12)
	seedSales(t, s, model.MarketplaceFacebook, 3)

	src := sourceFunc(func(_ context.Context, q market.Query) (*market.Snapshot, error) {
		assert.Equal(t, "Brass desk lamp", q.Text)
		return &market.Snapshot{
			AveragePrice: decimal.NewFromInt(30), Min: decimal.NewFromInt(10),
			Max: decimal.NewFromInt(60), ActiveListings: 7,
		}, nil
	})

	var seen Request
	r := reasonerFunc(func(_ context.Context, req Request) (*Suggestion, error) {
		seen = req
		return &Suggestion{
			SuggestedPrice: decimal.RequireFromString("27.499"),
			Reasoning:      "priced near the market average",
			Confidence:     0.82,
			MarketAnalysis: MarketAnalysis{
				AveragePrice: decimal.NewFromInt(30),
				PriceRange:   model.PriceRange{Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(60)},
				Strategy:     "competitive",
			},
		}, nil
	})

	o := NewOptimizer(s, src, r, WithClock(func() time.Time { return now }))
	analysis := &model.ProductAnalysis{Title: "Brass desk lamp", Condition: "good", Category: "Home & Garden"}
	got := o.Suggest(context.Background(), activeListing("35"), analysis)

	require.Len(t, seen.RecentSales, RecentSalesLimit)
	for _, c := range seen.RecentSales {
		assert.Equal(t, string(model.MarketplaceEbay), c.Marketplace)
	}
	assert.InDelta(t, 12.0, seen.RecentSales[0].DaysToSell, 1e-9, "newest sale first")
	assert.Equal(t, 7, seen.Market.ActiveListings)
	assert.Equal(t, "good", seen.Condition)
	assert.InDelta(t, 10.0, seen.DaysListed, 1e-9)

	assert.False(t, got.Fallback)
	assert.Equal(t, "27.50", got.SuggestedPrice.StringFixed(2))
	assert.Equal(t, 0.82, got.Confidence)
	assert.Equal(t, "competitive", got.MarketData.Strategy)
	assert.Equal(t, RecentSalesLimit, got.MarketData.ComparableSales)
	assert.Equal(t, 7, got.MarketData.ActiveListings)
}

func TestSuggest_SnapshotFailureDegradesToEmpty(t *testing.T) {
	src := sourceFunc(func(context.Context, market.Query) (*market.Snapshot, error) {
		return nil, errors.New("blocked")
	})
	r := reasonerFunc(func(_ context.Context, req Request) (*Suggestion, error) {
		assert.Equal(t, 0, req.Market.ActiveListings)
		return &Suggestion{SuggestedPrice: decimal.NewFromInt(90), Confidence: 0.6}, nil
	})

	got := NewOptimizer(store.NewMemory(), src, r).Suggest(context.Background(), activeListing("100"), nil)
	assert.False(t, got.Fallback)
	assert.Equal(t, "90.00", got.SuggestedPrice.StringFixed(2))
}

func TestOpenAIReasoner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)
		require.Len(t, body.Messages, 2)
		assert.Contains(t, body.Messages[1].Content, `"title":"Desk lamp"`)

		answer := `{"suggestedPrice": 42.5, "reasoning": "fair", "confidence": 0.9,
			"marketAnalysis": {"averagePrice": 40, "priceRange": {"min": 20, "max": 70}, "strategy": "hold"}}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": answer}}},
		})
	}))
	defer srv.Close()

	r := NewOpenAIReasoner(OpenAIConfig{BaseURL: srv.URL + "/v1/", APIKey: "key-1", Model: "test-model"}, nil)
	s, err := r.Suggest(context.Background(), Request{Title: "Desk lamp"})
	require.NoError(t, err)
	assert.Equal(t, "42.5", s.SuggestedPrice.String())
	assert.Equal(t, "hold", s.MarketAnalysis.Strategy)
	assert.Equal(t, "70", s.MarketAnalysis.PriceRange.Max.String())
}

func TestOpenAIReasoner_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"no choices", http.StatusOK, `{"choices": []}`},
		{"not json", http.StatusOK, `{"choices": [{"message": {"content": "about 40 euros"}}]}`},
		{"bad confidence", http.StatusOK, `{"choices": [{"message": {"content": "{\"suggestedPrice\": 40, \"confidence\": 7}"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r := NewOpenAIReasoner(OpenAIConfig{BaseURL: srv.URL, Model: "m"}, nil)
			_, err := r.Suggest(context.Background(), Request{})
			assert.Error(t, err)
		})
	}
}

func TestOpenAIReasoner_Live(t *testing.T) {
	key := testutil.RequireEnv(t, testutil.TestReasoningAPIKey)

	r := NewOpenAIReasoner(OpenAIConfig{
		BaseURL: testutil.ReasoningBaseURL(),
		APIKey:  key,
		Model:   testutil.Getenv("TEST_REASONING_MODEL", "gpt-4o-mini"),
		Timeout: 60 * time.Second,
	}, nil)

	s, err := r.Suggest(context.Background(), Request{
		Title:        "Vintage brass desk lamp",
		Marketplace:  model.MarketplaceEbay.DisplayName(),
		CurrentPrice: decimal.NewFromInt(45),
		Currency:     "EUR",
		DaysListed:   12,
		Condition:    "good",
	})
	require.NoError(t, err)
	assert.True(t, s.SuggestedPrice.IsPositive())
}
