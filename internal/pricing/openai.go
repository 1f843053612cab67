package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/config"
	"github.com/guarzo/listforge/internal/logging"
)

const systemPrompt = `You are a pricing assistant for second-hand marketplace sellers.
Given a listing, its recent comparable sales and a market snapshot, suggest a price.
Answer with a single JSON object:
{"suggestedPrice": number, "reasoning": string, "confidence": number between 0 and 1,
 "marketAnalysis": {"averagePrice": number, "priceRange": {"min": number, "max": number}, "strategy": string}}`

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIConfigFromSettings builds a reasoning client config from application settings
func OpenAIConfigFromSettings(c config.ReasoningConfig) OpenAIConfig {
	return OpenAIConfig{BaseURL: c.BaseURL, APIKey: c.APIKey, Model: c.Model, Timeout: c.Timeout}
}

// OpenAIReasoner asks a chat completion model for a price suggestion
type OpenAIReasoner struct {
	cfg    OpenAIConfig
	client *resty.Client
	logger *zap.Logger
}

// NewOpenAIReasoner creates a reasoning client
func NewOpenAIReasoner(cfg OpenAIConfig, logger *zap.Logger) *OpenAIReasoner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &OpenAIReasoner{
		cfg: cfg,
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.APIKey),
		logger: logging.OrNop(logger).Named("reasoning"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Suggest sends the request as chat context and decodes the JSON answer
func (r *OpenAIReasoner) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal reasoning request: %w", err)
	}

	var out chatResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: r.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: string(payload)},
			},
			Temperature:    0.2,
			ResponseFormat: responseFormat{Type: "json_object"},
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("calling reasoning service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("reasoning service: status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("reasoning service: empty choices in response")
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &s); err != nil {
		return nil, fmt.Errorf("%w: decoding answer: %v", ErrInvalidSuggestion, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	r.logger.Debug("price suggestion received",
		zap.String("suggested_price", s.SuggestedPrice.String()),
		zap.Float64("confidence", s.Confidence))
	return &s, nil
}
