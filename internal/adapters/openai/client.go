// Package openai streams chat completions from an OpenAI-compatible API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/pixl-ae/leadflow/pkg/sse"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.55
)

const doneMarker = "[DONE]"

// Config holds the connection settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// Client implements ports.DialogAgent.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client. Empty config values fall back to the defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	c := &Client{
		cfg:    cfg,
		http:   http.DefaultClient,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    ports.Role `json:"role"`
	Content string     `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Stream posts the conversation and streams the completion deltas.
func (c *Client) Stream(ctx context.Context, req ports.AgentRequest) (<-chan ports.AgentChunk, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    make([]chatMessage, 0, len(req.History)+1),
		Temperature: c.cfg.Temperature,
		Stream:      true,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: ports.RoleSystem, Content: req.SystemPrompt})
	}
	for _, t := range req.History {
		body.Messages = append(body.Messages, chatMessage{Role: t.Role, Content: t.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat completion returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	ch := make(chan ports.AgentChunk)
	go c.read(ctx, resp.Body, ch)
	return ch, nil
}

// read decodes the event stream until the done marker. Fragments that are
// not valid JSON are skipped.
func (c *Client) read(ctx context.Context, body io.ReadCloser, ch chan<- ports.AgentChunk) {
	defer close(ch)
	defer body.Close()

	send := func(chunk ports.AgentChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	dec := sse.NewDecoder(body)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				send(ports.AgentChunk{Err: fmt.Errorf("failed to read stream: %w", err)})
			}
			return
		}

		data := strings.TrimSpace(ev.Data)
		if data == doneMarker {
			return
		}
		if data == "" {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("Skipping malformed stream fragment", "err", err)
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !send(ports.AgentChunk{Delta: choice.Delta.Content}) {
				return
			}
		}
	}
}
