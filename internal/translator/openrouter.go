package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/live-interpreter/internal/delta"
	"github.com/lexiqai/live-interpreter/internal/resilience"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "google/gemini-2.0-flash-001"
	translationTemperature = 0.3
	translationMaxTokens   = 200
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenRouterClient translates through an OpenAI-compatible chat completions API.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenRouterClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements Translator.
func (c *OpenRouterClient) Name() string {
	return "openrouter"
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Translate implements Translator.
func (c *OpenRouterClient) Translate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	fail := func(status int, err error) (*Response, error) {
		return nil, &BackendError{
			Backend:    c.Name(),
			Source:     req.CurrentSource,
			Latency:    time.Since(start),
			StatusCode: status,
			Err:        err,
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: BuildPrompt(req)}},
		Temperature: translationTemperature,
		MaxTokens:   translationMaxTokens,
	})
	if err != nil {
		return fail(0, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(0, resilience.NewRetryableError(fmt.Errorf("failed to send request: %w", err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fail(resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	if chatResp.Error != nil {
		return fail(resp.StatusCode, errors.New(chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return fail(resp.StatusCode, errors.New("no choices in response"))
	}

	text := delta.StripQuotes(chatResp.Choices[0].Message.Content)
	if text == "" {
		return fail(resp.StatusCode, errors.New("empty translation"))
	}

	return &Response{
		Seq:             req.Seq,
		FullTranslation: text,
		Latency:         time.Since(start),
	}, nil
}
