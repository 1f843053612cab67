// Package batch runs image analysis for many images with a fixed concurrency window.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
)

// Window is the number of images analyzed at the same time
const Window = 3

// Image is one uploaded product photo
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Analyzer is the external image-analysis provider
type Analyzer interface {
	Analyze(ctx context.Context, img Image) (*model.ProductAnalysis, error)
}

// AnalyzerFunc adapts a function to Analyzer
type AnalyzerFunc func(ctx context.Context, img Image) (*model.ProductAnalysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, img Image) (*model.ProductAnalysis, error) {
	return f(ctx, img)
}

// Result is the outcome for one image
type Result struct {
	Image    Image                  `json:"image"`
	Analysis *model.ProductAnalysis `json:"analysis,omitempty"`
	Error    error                  `json:"-"`
	Latency  time.Duration          `json:"latency"`
}

// Metrics summarizes a batch run
type Metrics struct {
	Total        int
	Succeeded    int
	Failed       int
	TotalLatency time.Duration
	StartTime    time.Time
	EndTime      time.Time
}

// Config holds configuration for the runner
type Config struct {
	RateLimit rate.Limit    // analysis calls per second, 0 means unlimited
	Timeout   time.Duration // per image
}

// Runner analyzes images in a fixed window of Window concurrent units
type Runner struct {
	analyzer Analyzer
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	metrics Metrics
}

// NewRunner creates a batch runner
func NewRunner(analyzer Analyzer, cfg Config, logger *zap.Logger) *Runner {
	limit := cfg.RateLimit
	if limit == 0 {
		limit = rate.Inf
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Runner{
		analyzer: analyzer,
		limiter:  rate.NewLimiter(limit, Window),
		timeout:  timeout,
		logger:   logging.OrNop(logger),
	}
}

type job struct {
	index int
	image Image
}

// AnalyzeAll analyzes every image. Units finish in any order; results are
// returned in input order. A failed image does not stop the others.
func (r *Runner) AnalyzeAll(ctx context.Context, images []Image) []Result {
	if len(images) == 0 {
		return nil
	}

	r.mu.Lock()
	r.metrics = Metrics{Total: len(images), StartTime: time.Now()}
	r.mu.Unlock()

	jobs := make(chan job)
	results := make([]Result, len(images))

	workers := Window
	if len(images) < workers {
		workers = len(images)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = r.analyze(ctx, j.image)
			}
		}()
	}

	for i, img := range images {
		select {
		case jobs <- job{index: i, image: img}:
		case <-ctx.Done():
			// images never handed out carry the cancellation
			for k := i; k < len(images); k++ {
				results[k] = Result{Image: images[k], Error: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			r.finish(results)
			return results
		}
	}
	close(jobs)
	wg.Wait()

	r.finish(results)
	return results
}

func (r *Runner) analyze(ctx context.Context, img Image) Result {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{Image: img, Error: fmt.Errorf("rate limiter error: %w", err)}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	analysis, err := r.analyzer.Analyze(timeoutCtx, img)
	latency := time.Since(start)
	if err != nil {
		r.logger.Warn("image analysis failed", zap.String("image_id", img.ID), zap.Error(err))
		return Result{Image: img, Error: fmt.Errorf("analyzing image %s: %w", img.ID, err), Latency: latency}
	}
	return Result{Image: img, Analysis: analysis, Latency: latency}
}

func (r *Runner) finish(results []Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range results {
		if res.Error != nil {
			r.metrics.Failed++
		} else {
			r.metrics.Succeeded++
		}
		r.metrics.TotalLatency += res.Latency
	}
	r.metrics.EndTime = time.Now()
}

// Metrics returns the metrics of the last run
func (r *Runner) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
