// Package anthropic implements a ResponseProvider backed by the
// Anthropic Messages API. The API differs from OpenAI-compatible
// endpoints: authentication uses the x-api-key header, a version header
// is required, and the system prompt travels outside the message list.
package anthropic

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

const apiVersion = "2023-06-01"

// Config configures one Anthropic provider instance.
type Config struct {
	Name    string        `yaml:"name" json:"name"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Provider calls the Anthropic Messages API.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a provider. BaseURL defaults to the public API.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
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

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type response struct {
	Content []contentBlock `json:"content"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Respond implements providers.ResponseProvider.
func (p *Provider) Respond(ctx context.Context, prompt string, pctx providers.Context) (string, error) {
	maxTokens := pctx.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024 // the Messages API requires max_tokens
	}
	reqBody := request{
		Model:       p.cfg.Model,
		System:      fmt.Sprintf("You are a thoughtful discussant named %s.", p.cfg.Name),
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: pctx.Temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "marshal messages request").WithCause(err).WithProvider(p.cfg.Name)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "build messages request").WithCause(err).WithProvider(p.cfg.Name)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", types.NewError(types.ErrUpstreamTimeout, "messages request canceled").WithCause(err).WithProvider(p.cfg.Name)
		}
		return "", types.NewError(types.ErrProviderFailure, "messages request failed").WithCause(err).WithProvider(p.cfg.Name).WithRetryable(true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrProviderFailure, "read messages response").WithCause(err).WithProvider(p.cfg.Name)
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

	var msgResp response
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", types.NewError(types.ErrProviderFailure, "decode messages response").WithCause(err).WithProvider(p.cfg.Name)
	}

	var sb strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", types.NewError(types.ErrProviderFailure, "no text content in messages response").WithProvider(p.cfg.Name)
	}

	p.logger.Debug("messages completion",
		zap.String("model", p.cfg.Model),
		zap.Duration("duration", time.Since(start)),
	)
	return sb.String(), nil
}
