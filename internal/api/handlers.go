package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/batch"
	"github.com/guarzo/listforge/internal/export"
	"github.com/guarzo/listforge/internal/ledger"
	"github.com/guarzo/listforge/internal/model"
	"github.com/guarzo/listforge/internal/publisher"
	"github.com/guarzo/listforge/internal/store"
)

func (s *Server) health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

func marketplaceParam(c *gin.Context) (model.MarketplaceID, error) {
	m := model.MarketplaceID(c.Param("marketplace"))
	if !m.IsValid() {
		return "", model.NewError(model.ErrUnsupportedMarketplace, m, "", nil)
	}
	return m, nil
}

// auth

func (s *Server) authorize(c *gin.Context) {
	m, err := marketplaceParam(c)
	if err != nil {
		s.failWith(c, err)
		return
	}

	var scopes []string
	if raw := c.Query("scopes"); raw != "" {
		scopes = strings.Split(raw, ",")
	}
	url, state, err := s.deps.Tokens.BuildAuthorizationURL(m, scopes)
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"url": url, "state": state})
}

func (s *Server) callback(c *gin.Context) {
	m, err := marketplaceParam(c)
	if err != nil {
		s.failWith(c, err)
		return
	}
	if denied := c.Query("error"); denied != "" {
		fail(c, http.StatusBadRequest, CodeAuthExchange, fmt.Sprintf("%s: authorization denied: %s", m, denied))
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		badRequest(c, "code and state are required")
		return
	}

	connected, err := s.deps.Tokens.HandleCallback(c.Request.Context(), state, code)
	if err != nil {
		s.failWith(c, err)
		return
	}
	if connected != m {
		fail(c, http.StatusBadRequest, CodeAuthExchange, fmt.Sprintf("state was issued for %s", connected))
		return
	}
	ok(c, http.StatusOK, gin.H{"marketplace": m, "connected": true})
}

func (s *Server) tokenStatus(c *gin.Context) {
	m, err := marketplaceParam(c)
	if err != nil {
		s.failWith(c, err)
		return
	}
	st, err := s.deps.Tokens.Status(c.Request.Context(), m)
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

func (s *Server) disconnect(c *gin.Context) {
	m, err := marketplaceParam(c)
	if err != nil {
		s.failWith(c, err)
		return
	}
	if err := s.deps.Tokens.Disconnect(c.Request.Context(), m); err != nil {
		s.failWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listings

type publishRequest struct {
	UserID       string                `json:"userId" binding:"required"`
	AnalysisID   string                `json:"analysisId"`
	Analysis     model.ProductAnalysis `json:"analysis"`
	Images       []string              `json:"images"`
	Marketplaces []model.MarketplaceID `json:"marketplaces" binding:"required,min=1"`
}

func (s *Server) publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	results := s.deps.Publisher.PublishAll(c.Request.Context(), publisher.Request{
		UserID:     req.UserID,
		AnalysisID: req.AnalysisID,
		Analysis:   req.Analysis,
		Images:     req.Images,
	}, req.Marketplaces)
	ok(c, http.StatusOK, results)
}

type prepareRequest struct {
	Analysis    model.ProductAnalysis `json:"analysis"`
	Marketplace model.MarketplaceID   `json:"marketplace" binding:"required"`
	Images      []string              `json:"images"`
}

func (s *Server) prepare(c *gin.Context) {
	var req prepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	prepared, err := s.deps.Publisher.Prepare(req.Analysis, req.Marketplace, req.Images)
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, prepared)
}

type recordRequest struct {
	UserID               string              `json:"userId" binding:"required"`
	AnalysisID           string              `json:"analysisId"`
	Marketplace          model.MarketplaceID `json:"marketplace" binding:"required"`
	MarketplaceListingID string              `json:"marketplaceListingId"`
	Price                decimal.Decimal     `json:"price"`
	Currency             string              `json:"currency"`
	Title                string              `json:"title" binding:"required"`
	URL                  string              `json:"url"`
}

// recordListing registers a listing the seller posted by hand
func (s *Server) recordListing(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !req.Price.IsPositive() {
		badRequest(c, "price must be positive")
		return
	}

	listing, err := s.deps.Ledger.CreateListing(c.Request.Context(), ledger.NewListing{
		UserID:               req.UserID,
		AnalysisID:           req.AnalysisID,
		Marketplace:          req.Marketplace,
		MarketplaceListingID: req.MarketplaceListingID,
		Price:                req.Price,
		Currency:             req.Currency,
		Title:                req.Title,
		URL:                  req.URL,
	})
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusCreated, listing)
}

type listingDetail struct {
	Listing *model.Listing         `json:"listing"`
	Sale    *model.SaleTransaction `json:"sale,omitempty"`
}

func (s *Server) getListing(c *gin.Context) {
	ctx := c.Request.Context()
	listing, err := s.deps.Ledger.Get(ctx, c.Param("id"))
	if err != nil {
		s.failWith(c, err)
		return
	}

	detail := listingDetail{Listing: listing}
	if listing.Status == model.ListingStatusSold {
		sale, err := s.deps.Ledger.Sale(ctx, listing.ID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			s.failWith(c, err)
			return
		}
		detail.Sale = sale
	}
	ok(c, http.StatusOK, detail)
}

type transitionRequest struct {
	Status model.ListingStatus `json:"status" binding:"required"`
	At     *time.Time          `json:"at"`
}

func (s *Server) transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	listing, err := s.deps.Ledger.TransitionStatus(c.Request.Context(), c.Param("id"), req.Status,
		&ledger.Extra{At: req.At})
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, listing)
}

func (s *Server) reconcile(c *gin.Context) {
	listing, err := s.deps.Reconciler.ReconcileListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, listing)
}

type optimizeRequest struct {
	Analysis *model.ProductAnalysis `json:"analysis"`
}

func (s *Server) optimize(c *gin.Context) {
	var req optimizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	listing, err := s.deps.Ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, s.deps.Optimizer.Suggest(c.Request.Context(), *listing, req.Analysis))
}

// users

func (s *Server) userListings(c *gin.Context) {
	listings, err := s.deps.Ledger.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, listings)
}

func (s *Server) metrics(c *gin.Context) {
	r, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := s.deps.Analytics.MetricsFor(c.Request.Context(), c.Param("userId"), r)
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

const dateOnly = "2006-01-02"

// parseRange accepts RFC 3339 timestamps or plain dates. A plain "to" date covers the whole day.
func parseRange(from, to string) (model.DateRange, error) {
	var r model.DateRange
	if from != "" {
		t, _, err := parseTime(from)
		if err != nil {
			return r, fmt.Errorf("invalid from: %w", err)
		}
		r.From = &t
	}
	if to != "" {
		t, dayOnly, err := parseTime(to)
		if err != nil {
			return r, fmt.Errorf("invalid to: %w", err)
		}
		if dayOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.To = &t
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return r, errors.New("to is before from")
	}
	return r, nil
}

func parseTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *Server) loadSales(c *gin.Context) ([]model.SaleTransaction, bool) {
	r, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	sales, err := s.deps.Sales.Sales(c.Request.Context(), store.SaleFilter{
		UserID:      c.Param("userId"),
		Marketplace: model.MarketplaceID(c.Query("marketplace")),
	})
	if err != nil {
		s.failWith(c, err)
		return nil, false
	}

	inRange := sales[:0]
	for _, tx := range sales {
		if r.Contains(tx.SoldAt) {
			inRange = append(inRange, tx)
		}
	}
	return inRange, true
}

func (s *Server) userSales(c *gin.Context) {
	sales, found := s.loadSales(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, sales)
}

func (s *Server) exportSales(c *gin.Context) {
	sales, found := s.loadSales(c)
	if !found {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="sales-%s.csv"`, c.Param("userId")))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := export.WriteSales(c.Writer, sales); err != nil {
		s.requestLogger(c).Error("writing sales export", zap.Error(err))
	}
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.deps.Profiles.GetProfile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

func (s *Server) putProfile(c *gin.Context) {
	var p model.UserProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	p.UserID = c.Param("userId")
	p.UpdatedAt = time.Now().UTC()

	if err := s.deps.Profiles.SaveProfile(c.Request.Context(), &p); err != nil {
		s.failWith(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// analyses

type batchRequest struct {
	Images []batch.Image `json:"images" binding:"required,min=1"`
}

type batchItem struct {
	Image    batch.Image            `json:"image"`
	Analysis *model.ProductAnalysis `json:"analysis,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func (s *Server) analyzeBatch(c *gin.Context) {
	if s.deps.Analyzer == nil {
		s.failWith(c, model.NewError(model.ErrConfiguration, "", "image analysis is not configured", nil))
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	results := s.deps.Analyzer.AnalyzeAll(c.Request.Context(), req.Images)
	items := make([]batchItem, len(results))
	for i, res := range results {
		items[i] = batchItem{Image: res.Image, Analysis: res.Analysis}
		if res.Error != nil {
			items[i].Error = res.Error.Error()
		}
	}
	ok(c, http.StatusOK, items)
}
