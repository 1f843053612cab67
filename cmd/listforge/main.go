// Command listforge runs the listing engine HTTP API and the reconciliation scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/analytics"
	"github.com/guarzo/listforge/internal/api"
	"github.com/guarzo/listforge/internal/auth"
	"github.com/guarzo/listforge/internal/batch"
	"github.com/guarzo/listforge/internal/cache"
	"github.com/guarzo/listforge/internal/config"
	"github.com/guarzo/listforge/internal/ebay"
	"github.com/guarzo/listforge/internal/facebook"
	"github.com/guarzo/listforge/internal/ledger"
	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/market"
	"github.com/guarzo/listforge/internal/marketplace"
	"github.com/guarzo/listforge/internal/pricing"
	"github.com/guarzo/listforge/internal/publisher"
	"github.com/guarzo/listforge/internal/reconcile"
	"github.com/guarzo/listforge/internal/store"
)

const snapshotCacheSize = 500

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "listforge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB().DB(); err == nil {
		defer sqlDB.Close()
	}

	var redisClient *redis.Client
	if cfg.Tokens.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Tokens.RedisAddr,
			Password: cfg.Tokens.RedisPassword,
			DB:       cfg.Tokens.RedisDB,
		})
		defer redisClient.Close()
	}

	backend, err := tokenBackend(cfg, redisClient)
	if err != nil {
		return err
	}

	timeout := cfg.HTTP.RequestTimeout
	ms := cfg.Marketplaces
	registry := marketplace.NewRegistry(
		marketplace.NewEbay(
			ebay.NewClient(ebay.ConfigFromSettings(ms.Ebay, timeout), logger),
			auth.EbayProvider(ms.Ebay), ms.Ebay.Currency, logger),
		marketplace.NewFacebook(
			facebook.NewClient(facebook.ConfigFromSettings(ms.Facebook, timeout), logger),
			auth.FacebookProvider(ms.Facebook), ms.Facebook.Currency),
		marketplace.NewKleinanzeigen(ms.Kleinanzeigen.Currency),
	)

	tokens := auth.NewTokenStore(registry.Providers(), backend,
		auth.WithLogger(logger),
		auth.WithTimeout(timeout))

	listings := ledger.New(db, ledger.WithLogger(logger))
	pub := publisher.New(registry, tokens, listings,
		publisher.WithTimeout(cfg.HTTP.PublishTimeout),
		publisher.WithLogger(logger))
	reconciler := reconcile.New(listings, pub, logger)

	var snapshots cache.Cache = cache.NewMemory(snapshotCacheSize)
	if redisClient != nil {
		snapshots = cache.NewRedis(redisClient)
	}
	source := market.NewSearchScraper(market.ConfigFromSettings(cfg.Market, timeout), snapshots, logger)

	var reasoner pricing.Reasoner
	var analyzer api.Analyzer
	if cfg.Reasoning.APIKey != "" {
		reasoner = pricing.NewOpenAIReasoner(pricing.OpenAIConfigFromSettings(cfg.Reasoning), logger)
		analyzer = batch.NewRunner(batch.NewOpenAIAnalyzer(cfg.Reasoning, logger), batch.Config{}, logger)
	} else {
		logger.Warn("reasoning service not configured; price suggestions use the fallback heuristic")
	}
	optimizer := pricing.NewOptimizer(db, source, reasoner, pricing.WithLogger(logger))

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.New(api.Deps{
		Tokens:     tokens,
		Publisher:  pub,
		Ledger:     listings,
		Reconciler: reconciler,
		Optimizer:  optimizer,
		Analytics:  analytics.New(db, logger),
		Profiles:   db,
		Sales:      db,
		Analyzer:   analyzer,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Reconcile.Enabled {
		scheduler, err := reconcile.NewScheduler(reconciler, cfg.Reconcile.Schedule, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			scheduler.Stop(shutdownCtx)
		}()
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.App.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func tokenBackend(cfg *config.Config, client *redis.Client) (auth.Backend, error) {
	if client == nil {
		return auth.NewMemoryBackend(), nil
	}
	key, err := cfg.TokenEncryptionKey()
	if err != nil {
		return nil, err
	}
	return auth.NewRedisBackend(client, key)
}
