package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:             srv.URL,
		ViewURL:             "https://www.ebay.test/itm/",
		AppID:               "app-id",
		MarketplaceID:       "EBAY_DE",
		SiteID:              "77",
		MerchantLocationKey: "warehouse-1",
		FulfillmentPolicyID: "ful-1",
		RequestsPerSecond:   1000,
	}, nil)
}

func TestClient_PublishSequence(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/sell/inventory/v1/inventory_item/sku-1", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "inventory")
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "de-DE", r.Header.Get("Content-Language"))

		var item InventoryItem
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		assert.Equal(t, "Lamp", item.Product.Title)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/sell/inventory/v1/offer", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "offer")
		var offer Offer
		require.NoError(t, json.NewDecoder(r.Body).Decode(&offer))
		assert.Equal(t, "EBAY_DE", offer.MarketplaceID)
		assert.Equal(t, "warehouse-1", offer.MerchantLocationKey)
		assert.Equal(t, "ful-1", offer.ListingPolicies.FulfillmentPolicyID)
		assert.Equal(t, "19.99", offer.PricingSummary.Price.Value)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"offerId":"off-9"}`)
	})
	mux.HandleFunc("/sell/inventory/v1/offer/off-9/publish", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "publish")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"listingId":"110555"}`)
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	err := c.CreateOrReplaceInventoryItem(ctx, "tok", "sku-1", InventoryItem{Product: &Product{Title: "Lamp"}})
	require.NoError(t, err)

	offerID, err := c.CreateOffer(ctx, "tok", Offer{
		SKU:            "sku-1",
		Format:         "FIXED_PRICE",
		CategoryID:     "99",
		PricingSummary: &PricingSummary{Price: &Amount{Value: "19.99", Currency: "EUR"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "off-9", offerID)

	listingID, err := c.PublishOffer(ctx, "tok", offerID)
	require.NoError(t, err)
	assert.Equal(t, "110555", listingID)
	assert.Equal(t, "https://www.ebay.test/itm/110555", c.ListingURL(listingID))

	assert.Equal(t, []string{"inventory", "offer", "publish"}, calls)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errors":[{"errorId":25002,"message":"Invalid category"}]}`)
	}))

	_, err := c.CreateOffer(context.Background(), "tok", Offer{SKU: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "Invalid category")
	assert.False(t, apiErr.NotFound())
}

func TestClient_GetItem(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GetItem", r.Header.Get("X-EBAY-API-CALL-NAME"))
		assert.Equal(t, "77", r.Header.Get("X-EBAY-API-SITEID"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<ItemID>110555</ItemID>")

		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<GetItemResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Ack>Success</Ack>
  <Item>
    <ItemID>110555</ItemID>
    <HitCount>42</HitCount>
    <WatchCount>3</WatchCount>
    <SellingStatus>
      <ListingStatus>Completed</ListingStatus>
      <QuantitySold>1</QuantitySold>
    </SellingStatus>
  </Item>
</GetItemResponse>`)
	}))

	st, err := c.GetItem(context.Background(), "tok", "110555")
	require.NoError(t, err)
	assert.Equal(t, ListingStatusCompleted, st.ListingStatus)
	assert.Equal(t, 1, st.QuantitySold)
	assert.Equal(t, 42, st.ViewCount)
	assert.Equal(t, 3, st.WatchCount)
}

func TestClient_GetItemNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 404", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"error code 17", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<GetItemResponse><Ack>Failure</Ack><Errors><ErrorCode>17</ErrorCode>`+
				`<LongMessage>Item cannot be accessed</LongMessage></Errors></GetItemResponse>`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.GetItem(context.Background(), "tok", "1")
			assert.ErrorIs(t, err, ErrItemNotFound)
		})
	}
}

func TestClient_GetItemFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<GetItemResponse><Ack>Failure</Ack><Errors><ErrorCode>931</ErrorCode>`+
			`<LongMessage>Auth token is invalid</LongMessage></Errors></GetItemResponse>`)
	}))

	_, err := c.GetItem(context.Background(), "tok", "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrItemNotFound)
	assert.True(t, strings.Contains(err.Error(), "Auth token is invalid"))
}
