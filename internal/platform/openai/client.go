package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yungbote/research-evidence-backend/internal/platform/httpx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

// Client generates schema-constrained JSON through the OpenAI Responses API.
type Client interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// Timeout bounds a single HTTP attempt; callers bound the whole call with ctx.
	Timeout    time.Duration
	MaxRetries int

	// Temperature defaults to 0.2. Models that reject the parameter get it
	// dropped after the first refusal.
	Temperature        *float64
	DisableTemperature bool
}

const (
	defaultBaseURL     = "https://api.openai.com"
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.2
	responsesPath      = "/v1/responses"
)

// ErrEmptyOutput means the model answered without any output_text.
var ErrEmptyOutput = errors.New("openai: no output_text in response")

type client struct {
	log         *logger.Logger
	cfg         Config
	httpClient  *http.Client
	retry       httpx.Policy
	dropTemp    atomic.Bool
	temperature *float64
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model = strings.TrimSpace(cfg.Model); cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &client{
		log:        log.With("client", "OpenAIClient", "model", cfg.Model),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	switch {
	case cfg.DisableTemperature:
	case cfg.Temperature != nil:
		c.temperature = cfg.Temperature
	default:
		t := defaultTemperature
		c.temperature = &t
	}
	c.retry = httpx.Policy{
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: time.Second,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			c.log.Warn("OpenAI request retrying", "attempt", attempt, "max_retries", cfg.MaxRetries, "sleep", wait.String(), "error", err)
		},
	}
	return c, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textFormat struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type request struct {
	Model string    `json:"model"`
	Input []message `json:"input"`
	Text  struct {
		Format textFormat `json:"format"`
	} `json:"text"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type response struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func (r response) outputText() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" || schema == nil {
		return nil, errors.New("openai: schema name and schema are required")
	}
	req := &request{
		Model: c.cfg.Model,
		Input: []message{{Role: "system", Content: system}, {Role: "user", Content: user}},
	}
	req.Text.Format = textFormat{Type: "json_schema", Name: schemaName, Schema: schema, Strict: true}
	if !c.dropTemp.Load() {
		req.Temperature = c.temperature
	}

	resp, err := c.send(ctx, req)
	if err != nil && req.Temperature != nil && rejectsTemperature(err) {
		c.dropTemp.Store(true)
		c.log.Warn("Model rejected temperature; omitting it from now on")
		req.Temperature = nil
		resp, err = c.send(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("openai: model refused: %s", resp.Refusal)
	}
	text := strings.TrimSpace(resp.outputText())
	if text == "" {
		return nil, ErrEmptyOutput
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("openai: parse model JSON: %w", err)
	}
	return obj, nil
}

func (c *client) send(ctx context.Context, req *request) (response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, err
	}
	var out response
	err = c.retry.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+responsesPath, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if err != nil {
			return httpResp, err
		}
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			return httpResp, &httpx.StatusError{StatusCode: httpResp.StatusCode, Body: string(raw)}
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return httpResp, fmt.Errorf("openai: decode response: %w", err)
		}
		return httpResp, nil
	})
	return out, err
}

func rejectsTemperature(err error) bool {
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(se.Body)
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, marker := range []string{"unsupported parameter", "unknown parameter", "not supported", "does not support", "only the default", "unsupported_value"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
