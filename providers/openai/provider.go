// Package openai implements a ResponseProvider backed by any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/types"
)

// Config configures one OpenAI-compatible provider instance.
type Config struct {
	// Name is the speaker identifier shown in transcripts.
	Name string `yaml:"name" json:"name"`

	APIKey  string        `yaml:"api_key" json:"api_key"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Provider calls an OpenAI-compatible chat completions API.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a provider. BaseURL defaults to the OpenAI API.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", cfg.Name)),
	}
}

// Identifier implements providers.ResponseProvider.
func (p *Provider) Identifier() string { return p.cfg.Name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Respond implements providers.ResponseProvider.
func (p *Provider) Respond(ctx context.Context, prompt string, pctx providers.Context) (string, error) {
	reqBody := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf("You are a thoughtful discussant named %s.", p.cfg.Name)},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   pctx.MaxTokens,
		Temperature: pctx.Temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "marshal chat request").WithCause(err).WithProvider(p.cfg.Name)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "build chat request").WithCause(err).WithProvider(p.cfg.Name)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", types.NewError(types.ErrUpstreamTimeout, "chat request canceled").WithCause(err).WithProvider(p.cfg.Name)
		}
		return "", types.NewError(types.ErrProviderFailure, "chat request failed").WithCause(err).WithProvider(p.cfg.Name).WithRetryable(true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrProviderFailure, "read chat response").WithCause(err).WithProvider(p.cfg.Name)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		return "", types.NewError(types.ErrProviderFailure,
			fmt.Sprintf("upstream status %d: %s", resp.StatusCode, apiErr.Error.Message)).
			WithProvider(p.cfg.Name).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", types.NewError(types.ErrProviderFailure, "decode chat response").WithCause(err).WithProvider(p.cfg.Name)
	}
	if len(chatResp.Choices) == 0 {
		return "", types.NewError(types.ErrProviderFailure, "empty choices in chat response").WithProvider(p.cfg.Name)
	}

	p.logger.Debug("chat completion",
		zap.String("model", p.cfg.Model),
		zap.Duration("duration", time.Since(start)),
	)
	return chatResp.Choices[0].Message.Content, nil
}
