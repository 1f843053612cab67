// Package publisher publishes a product analysis to a marketplace and reports the outcome uniformly.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/adapter"
	"github.com/guarzo/listforge/internal/ledger"
	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/marketplace"
	"github.com/guarzo/listforge/internal/model"
)

// DefaultPublishTimeout bounds the adapt, token and publish sequence of one marketplace
const DefaultPublishTimeout = 30 * time.Second

// TokenSource hands out valid access tokens
type TokenSource interface {
	EnsureValid(ctx context.Context, m model.MarketplaceID) (string, error)
}

// ListingRecorder records published listings
type ListingRecorder interface {
	CreateListing(ctx context.Context, in ledger.NewListing) (*model.Listing, error)
}

// Request describes one item to publish
type Request struct {
	UserID      string                `json:"userId"`
	AnalysisID  string                `json:"analysisId"`
	Analysis    model.ProductAnalysis `json:"analysis"`
	Marketplace model.MarketplaceID   `json:"marketplace"`
	Images      []string              `json:"images"`
}

// Result is the uniform outcome of a publish attempt or status check.
// ID is the ledger listing id on success and a generated id for drafts.
type Result struct {
	ID                   string              `json:"id"`
	Marketplace          model.MarketplaceID `json:"marketplace"`
	Status               model.PublishStatus `json:"status"`
	MarketplaceListingID string              `json:"marketplaceListingId,omitempty"`
	URL                  string              `json:"url,omitempty"`
	Error                string              `json:"error,omitempty"`
	Views                *int                `json:"views,omitempty"`
	WatchCount           *int                `json:"watchCount,omitempty"`
}

// Publisher runs marketplace publish sequences
type Publisher struct {
	registry *marketplace.Registry
	tokens   TokenSource
	ledger   ListingRecorder
	timeout  time.Duration
	newID    func() string
	logger   *zap.Logger
}

// Option configures a Publisher
type Option func(*Publisher)

// WithTimeout sets the publish sequence timeout
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithIDGenerator sets the generator for draft ids
func WithIDGenerator(gen func() string) Option {
	return func(p *Publisher) { p.newID = gen }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) { p.logger = logging.OrNop(l) }
}

// New creates a publisher
func New(registry *marketplace.Registry, tokens TokenSource, recorder ListingRecorder, opts ...Option) *Publisher {
	p := &Publisher{
		registry: registry,
		tokens:   tokens,
		ledger:   recorder,
		timeout:  DefaultPublishTimeout,
		newID:    uuid.NewString,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// publishable resolves a marketplace that supports programmatic publishing
func (p *Publisher) publishable(id model.MarketplaceID) (marketplace.Marketplace, error) {
	m, ok := p.registry.Get(id)
	if !ok {
		return nil, model.NewError(model.ErrUnsupportedMarketplace, id, "", nil)
	}
	if !m.CanPublish() {
		return nil, model.NewError(model.ErrNoProgrammaticPublish, id,
			fmt.Sprintf("%s listings must be posted manually; use prepare to get a compliant payload", id.DisplayName()), nil)
	}
	return m, nil
}

// Publish publishes one analysis to one marketplace. Unsupported and
// preparation-only marketplaces are returned as errors; any failure after
// that is reported as a draft result.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	m, err := p.publishable(req.Marketplace)
	if err != nil {
		return nil, err
	}

	log := p.logger.With(
		zap.String("marketplace", string(req.Marketplace)),
		zap.String("analysis_id", req.AnalysisID))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	adapted, err := m.Adapt(req.Analysis)
	if err != nil {
		return p.draft(log, req.Marketplace, fmt.Errorf("adapting listing: %w", err)), nil
	}

	token, err := p.tokens.EnsureValid(ctx, req.Marketplace)
	if err != nil {
		return p.draft(log, req.Marketplace, err), nil
	}

	pub, err := m.Publish(ctx, token, marketplace.Draft{Analysis: adapted, Images: req.Images})
	if err != nil {
		return p.draft(log, req.Marketplace, err), nil
	}

	result := &Result{
		Marketplace:          req.Marketplace,
		Status:               model.PublishStatusPublished,
		MarketplaceListingID: pub.ListingID,
		URL:                  pub.URL,
	}

	// the marketplace listing exists at this point; a ledger failure is reported, not turned into a draft
	listing, err := p.ledger.CreateListing(context.WithoutCancel(ctx), ledger.NewListing{
		UserID:               req.UserID,
		AnalysisID:           req.AnalysisID,
		Marketplace:          req.Marketplace,
		MarketplaceListingID: pub.ListingID,
		Price:                adapted.Price,
		Currency:             m.Requirements().Currency,
		Title:                adapted.Title,
		URL:                  pub.URL,
	})
	if err != nil {
		log.Error("listing published but not recorded",
			zap.String("marketplace_listing_id", pub.ListingID),
			zap.Error(err))
		result.ID = p.newID()
		result.Error = fmt.Sprintf("published but not recorded: %v", err)
		return result, nil
	}

	result.ID = listing.ID
	log.Info("listing published",
		zap.String("listing_id", listing.ID),
		zap.String("marketplace_listing_id", pub.ListingID))
	return result, nil
}

func (p *Publisher) draft(log *zap.Logger, m model.MarketplaceID, err error) *Result {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("publish timed out after %s: %w", p.timeout, err)
	}
	log.Warn("publish failed, kept as draft", zap.Error(err))
	return &Result{
		ID:          p.newID(),
		Marketplace: m,
		Status:      model.PublishStatusDraft,
		Error:       err.Error(),
	}
}

// PublishAll publishes one item to several marketplaces one after another.
// Every marketplace gets a result, in the order given.
func (p *Publisher) PublishAll(ctx context.Context, req Request, marketplaces []model.MarketplaceID) []Result {
	results := make([]Result, 0, len(marketplaces))
	for _, id := range marketplaces {
		r := req
		r.Marketplace = id

		res, err := p.Publish(ctx, r)
		if err != nil {
			res = &Result{ID: p.newID(), Marketplace: id, Status: model.PublishStatusDraft, Error: err.Error()}
		}
		results = append(results, *res)
	}
	return results
}

// CheckStatus asks the marketplace for the current state of a listing.
// A listing the marketplace no longer knows is reported as expired.
func (p *Publisher) CheckStatus(ctx context.Context, marketplaceListingID string, id model.MarketplaceID) (*Result, error) {
	m, err := p.publishable(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token, err := p.tokens.EnsureValid(ctx, id)
	if err != nil {
		return nil, err
	}

	st, err := m.CheckStatus(ctx, token, marketplaceListingID)
	if err != nil {
		return nil, fmt.Errorf("checking %s listing %s: %w", id, marketplaceListingID, err)
	}

	return &Result{
		ID:                   marketplaceListingID,
		Marketplace:          id,
		Status:               st.State,
		MarketplaceListingID: marketplaceListingID,
		URL:                  st.URL,
		Views:                st.Views,
		WatchCount:           st.WatchCount,
	}, nil
}

// Prepared is a marketplace-compliant payload for manual posting
type Prepared struct {
	Marketplace   model.MarketplaceID           `json:"marketplace"`
	Analysis      model.ProductAnalysis         `json:"analysis"`
	Requirements  model.MarketplaceRequirements `json:"requirements"`
	CategoryID    string                        `json:"categoryId"`
	CategoryFound bool                          `json:"categoryFound"`
	ConditionCode string                        `json:"conditionCode"`
	Price         string                        `json:"price"`
	Images        []string                      `json:"images"`
}

// Prepare adapts an analysis for any registered marketplace without publishing it
func (p *Publisher) Prepare(analysis model.ProductAnalysis, id model.MarketplaceID, images []string) (*Prepared, error) {
	m, ok := p.registry.Get(id)
	if !ok {
		return nil, model.NewError(model.ErrUnsupportedMarketplace, id, "", nil)
	}

	adapted, err := m.Adapt(analysis)
	if err != nil {
		return nil, fmt.Errorf("adapting listing: %w", err)
	}

	req := m.Requirements()
	if req.MaxImages > 0 && len(images) > req.MaxImages {
		images = images[:req.MaxImages]
	}
	categoryID, found := adapter.CategoryID(id, adapted.Category)

	return &Prepared{
		Marketplace:   id,
		Analysis:      adapted,
		Requirements:  req,
		CategoryID:    categoryID,
		CategoryFound: found,
		ConditionCode: adapter.ConditionCode(id, adapted.Condition),
		Price:         adapted.PriceEstimate,
		Images:        append([]string(nil), images...),
	}, nil
}
