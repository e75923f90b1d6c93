// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reasoning

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

	"github.com/pdiddy/bid-engine/internal/httputil"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const (
	anthropicVersion = "2023-06-01"
	webSearchTool    = "web_search_20250305"
	webSearchMaxUses = 5
)

// ClaudeBackend calls the Claude Messages API and decodes the text answer
// into the caller's response type.
type ClaudeBackend struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int

	// Timeout bounds one Complete call, including rate-limit retries.
	Timeout time.Duration

	Client *http.Client
	Logger *zap.Logger
}

// NewClaudeBackend builds a backend from configuration.
func NewClaudeBackend(cfg types.ReasoningConfig, logger *zap.Logger) *ClaudeBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeBackend{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.Timeout,
		Client:     &http.Client{},
		Logger:     logger,
	}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
	Tools     []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one request to the Claude API. Web search is enabled as a
// server tool when req.AllowWebSearch is set; the answer is taken from the
// text blocks of the response.
func (c *ClaudeBackend) Complete(ctx context.Context, req Request, out any) error {
	if c.APIKey == "" {
		return fmt.Errorf("claude: API key is not configured")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := claudeRequest{
		Model:     c.Model,
		MaxTokens: maxTokens,
		System:    systemPrompt(req),
		Messages:  []claudeMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.AllowWebSearch {
		body.Tools = []claudeTool{{Type: webSearchTool, Name: "web_search", MaxUses: webSearchMaxUses}}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, client, httpReq, c.MaxRetries)
	if err != nil {
		return fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("reasoning: call finished",
		zap.String("task", req.Task),
		zap.String("model", c.Model),
		zap.Int("status", resp.StatusCode),
		zap.Bool("web_search", req.AllowWebSearch),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(b))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return fmt.Errorf("decoding Claude response: %w", err)
	}
	if cResp.StopReason == "max_tokens" {
		return fmt.Errorf("%w: response truncated at %d tokens", ErrSchema, maxTokens)
	}

	var text strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return fmt.Errorf("no text content in Claude API response")
	}

	return Decode(text.String(), out)
}

func systemPrompt(req Request) string {
	if req.Schema == "" {
		return req.System
	}
	var b strings.Builder
	b.WriteString(req.System)
	if req.System != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object matching this example. Do not include any text outside the JSON object.\n")
	b.WriteString(req.Schema)
	return b.String()
}
