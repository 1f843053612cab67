package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/adapter"
	"github.com/guarzo/listforge/internal/config"
	"github.com/guarzo/listforge/internal/logging"
	"github.com/guarzo/listforge/internal/model"
)

const analysisPrompt = `Identify the product in the photo for a second-hand listing.
Answer with a single JSON object:
{"title": string, "priceEstimate": string, "condition": string, "category": string,
 "description": string, "keywords": [string], "brand": string, "model": string,
 "features": [string], "defects": [string]}`

// OpenAIAnalyzer sends one image to an OpenAI-compatible vision model
type OpenAIAnalyzer struct {
	model  string
	client *resty.Client
	logger *zap.Logger
}

// NewOpenAIAnalyzer creates an image analyzer on the reasoning endpoint settings
func NewOpenAIAnalyzer(cfg config.ReasoningConfig, logger *zap.Logger) *OpenAIAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIAnalyzer{
		model: cfg.Model,
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetAuthToken(cfg.APIKey),
		logger: logging.OrNop(logger).Named("analyzer"),
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type visionRequest struct {
	Model          string          `json:"model"`
	Messages       []visionMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze returns the product analysis for one image
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, img Image) (*model.ProductAnalysis, error) {
	body := visionRequest{
		Model: a.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: analysisPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: img.URL}},
			},
		}},
	}
	body.ResponseFormat.Type = "json_object"

	var out visionResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("calling analysis service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analysis service: status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("analysis service: empty choices in response")
	}

	var analysis model.ProductAnalysis
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &analysis); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	if analysis.Title == "" {
		return nil, fmt.Errorf("analysis for image %s has no title", img.ID)
	}
	analysis.ID = img.ID
	if analysis.Price.IsZero() {
		if p, ok := adapter.ParsePrice(analysis.PriceEstimate); ok {
			analysis.Price = p
		}
	}

	a.logger.Debug("image analyzed", zap.String("image_id", img.ID), zap.String("title", analysis.Title))
	return &analysis, nil
}
