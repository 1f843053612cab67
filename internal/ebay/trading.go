package ebay

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"
)

// Trading API error code for an unknown or removed item
const errCodeItemNotFound = "17"

// getItemRequest represents the GetItem XML request
type getItemRequest struct {
	XMLName              xml.Name `xml:"GetItemRequest"`
	Xmlns                string   `xml:"xmlns,attr"`
	RequesterCredentials struct {
		EBayAuthToken string `xml:"eBayAuthToken"`
	} `xml:"RequesterCredentials"`
	ItemID            string `xml:"ItemID"`
	IncludeWatchCount bool   `xml:"IncludeWatchCount"`
	DetailLevel       string `xml:"DetailLevel"`
}

// getItemResponse represents the GetItem XML response
type getItemResponse struct {
	XMLName xml.Name `xml:"GetItemResponse"`
	Ack     string   `xml:"Ack"`
	Errors  []struct {
		ShortMessage string `xml:"ShortMessage"`
		LongMessage  string `xml:"LongMessage"`
		ErrorCode    string `xml:"ErrorCode"`
	} `xml:"Errors"`
	Item struct {
		ItemID         string `xml:"ItemID"`
		HitCount       int    `xml:"HitCount"`
		WatchCount     int    `xml:"WatchCount"`
		ListingDetails struct {
			ViewItemURL string    `xml:"ViewItemURL"`
			EndTime     time.Time `xml:"EndTime"`
		} `xml:"ListingDetails"`
		SellingStatus struct {
			ListingStatus string `xml:"ListingStatus"`
			QuantitySold  int    `xml:"QuantitySold"`
			CurrentPrice  struct {
				Value      float64 `xml:",chardata"`
				CurrencyID string  `xml:"currencyID,attr"`
			} `xml:"CurrentPrice"`
		} `xml:"SellingStatus"`
	} `xml:"Item"`
}

// Trading API listing states
const (
	ListingStatusActive    = "Active"
	ListingStatusCompleted = "Completed"
	ListingStatusEnded     = "Ended"
)

// ItemStatus is the reconciliation view of one listing
type ItemStatus struct {
	ItemID        string
	ListingStatus string
	QuantitySold  int
	ViewCount     int
	WatchCount    int
	URL           string
	EndTime       time.Time
}

// GetItem fetches the current state of a listing. A removed item returns ErrItemNotFound.
func (c *Client) GetItem(ctx context.Context, token, itemID string) (*ItemStatus, error) {
	request := getItemRequest{
		Xmlns:             "urn:ebay:apis:eBLBaseComponents",
		ItemID:            itemID,
		IncludeWatchCount: true,
		DetailLevel:       "ReturnAll",
	}
	request.RequesterCredentials.EBayAuthToken = token

	xmlData, err := xml.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling XML request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-EBAY-API-COMPATIBILITY-LEVEL", "967").
		SetHeader("X-EBAY-API-APP-NAME", c.cfg.AppID).
		SetHeader("X-EBAY-API-CALL-NAME", "GetItem").
		SetHeader("X-EBAY-API-SITEID", c.cfg.SiteID).
		SetHeader("X-EBAY-API-IAF-TOKEN", token).
		SetHeader("Content-Type", "text/xml").
		SetBody(xml.Header + string(xmlData)).
		Post(c.cfg.TradingURL)
	if err != nil {
		return nil, fmt.Errorf("executing GetItem: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.IsError() {
		return nil, &APIError{Operation: "GetItem", StatusCode: resp.StatusCode()}
	}

	var response getItemResponse
	if err := xml.Unmarshal(resp.Body(), &response); err != nil {
		return nil, fmt.Errorf("parsing XML response: %w", err)
	}

	// Check for API errors
	if response.Ack != "Success" && response.Ack != "Warning" {
		for _, e := range response.Errors {
			if e.ErrorCode == errCodeItemNotFound {
				return nil, ErrItemNotFound
			}
		}
		errorMsg := "unknown error"
		if len(response.Errors) > 0 {
			errorMsg = response.Errors[0].LongMessage
		}
		return nil, fmt.Errorf("eBay API error: %s", errorMsg)
	}

	item := response.Item
	return &ItemStatus{
		ItemID:        item.ItemID,
		ListingStatus: item.SellingStatus.ListingStatus,
		QuantitySold:  item.SellingStatus.QuantitySold,
		ViewCount:     item.HitCount,
		WatchCount:    item.WatchCount,
		URL:           item.ListingDetails.ViewItemURL,
		EndTime:       item.ListingDetails.EndTime,
	}, nil
}
