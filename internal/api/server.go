// Package api exposes the listing engine over HTTP.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/auth"
	"github.com/guarzo/listforge/internal/batch"
	"github.com/guarzo/listforge/internal/ledger"
	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
	"github.com/guarzo/listforge/internal/publisher"
	"github.com/guarzo/listforge/internal/store"
)

// Tokens is the OAuth surface of the token store
type Tokens interface {
	BuildAuthorizationURL(m model.MarketplaceID, scopes []string) (string, string, error)
	HandleCallback(ctx context.Context, state, code string) (model.MarketplaceID, error)
	Status(ctx context.Context, m model.MarketplaceID) (auth.TokenStatus, error)
	Disconnect(ctx context.Context, m model.MarketplaceID) error
}

// Publisher publishes and prepares listings
type Publisher interface {
	PublishAll(ctx context.Context, req publisher.Request, marketplaces []model.MarketplaceID) []publisher.Result
	Prepare(analysis model.ProductAnalysis, m model.MarketplaceID, images []string) (*publisher.Prepared, error)
}

// Ledger reads and moves listings
type Ledger interface {
	CreateListing(ctx context.Context, in ledger.NewListing) (*model.Listing, error)
	Get(ctx context.Context, listingID string) (*model.Listing, error)
	ListByUser(ctx context.Context, userID string) ([]model.Listing, error)
	Sale(ctx context.Context, listingID string) (*model.SaleTransaction, error)
	TransitionStatus(ctx context.Context, listingID string, to model.ListingStatus, extra *ledger.Extra) (*model.Listing, error)
}

// Reconciler checks one listing against its marketplace
type Reconciler interface {
	ReconcileListing(ctx context.Context, listingID string) (*model.Listing, error)
}

// Optimizer suggests prices
type Optimizer interface {
	Suggest(ctx context.Context, listing model.Listing, analysis *model.ProductAnalysis) *model.PriceOptimization
}

// Analytics computes seller metrics
type Analytics interface {
	MetricsFor(ctx context.Context, userID string, r model.DateRange) (*model.SalesMetrics, error)
}

// Profiles stores user profile documents
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	SaveProfile(ctx context.Context, p *model.UserProfile) error
}

// Sales reads sale transactions
type Sales interface {
	Sales(ctx context.Context, f store.SaleFilter) ([]model.SaleTransaction, error)
}

// Analyzer runs image analysis batches
type Analyzer interface {
	AnalyzeAll(ctx context.Context, images []batch.Image) []batch.Result
}

// Deps are the services behind the routes. Analyzer may be nil.
type Deps struct {
	Tokens     Tokens
	Publisher  Publisher
	Ledger     Ledger
	Reconciler Reconciler
	Optimizer  Optimizer
	Analytics  Analytics
	Profiles   Profiles
	Sales      Sales
	Analyzer   Analyzer
}

// Server holds the route handlers
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// New creates the API server
func New(deps Deps, logger *zap.Logger) *Server {
	return &Server{deps: deps, logger: logging.OrNop(logger).Named("api")}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger))

	api := r.Group("/api")
	api.GET("/healthz", s.health)

	authGroup := api.Group("/auth/:marketplace")
	authGroup.GET("/authorize", s.authorize)
	authGroup.GET("/callback", s.callback)
	authGroup.GET("/status", s.tokenStatus)
	authGroup.DELETE("", s.disconnect)

	listings := api.Group("/listings")
	listings.POST("", s.recordListing)
	listings.POST("/publish", s.publish)
	listings.POST("/prepare", s.prepare)
	listings.GET("/:id", s.getListing)
	listings.POST("/:id/status", s.transition)
	listings.POST("/:id/reconcile", s.reconcile)
	listings.POST("/:id/optimize", s.optimize)

	users := api.Group("/users/:userId")
	users.GET("/listings", s.userListings)
	users.GET("/metrics", s.metrics)
	users.GET("/sales", s.userSales)
	users.GET("/sales/export", s.exportSales)
	users.GET("/profile", s.getProfile)
	users.PUT("/profile", s.putProfile)

	api.POST("/analyses/batch", s.analyzeBatch)

	return r
}
