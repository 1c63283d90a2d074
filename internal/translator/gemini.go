package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/lexiqai/live-interpreter/internal/delta"
)

const defaultGeminiModel = "gemini-2.0-flash"

type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// GeminiClient translates through the Gemini API.
type GeminiClient struct {
	model    string
	generate generateFunc
}

// NewGeminiClient creates a Gemini-backed translator.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{
		model: model,
		generate: func(ctx context.Context, model, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
				Temperature:     genai.Ptr[float32](translationTemperature),
				MaxOutputTokens: translationMaxTokens,
			})
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

// Name implements Translator.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Translate implements Translator.
func (c *GeminiClient) Translate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	text, err := c.generate(ctx, c.model, BuildPrompt(req))
	if err == nil {
		text = delta.StripQuotes(text)
		if text == "" {
			err = errors.New("empty translation")
		}
	}
	if err != nil {
		return nil, &BackendError{
			Backend: c.Name(),
			Source:  req.CurrentSource,
			Latency: time.Since(start),
			Err:     err,
		}
	}

	return &Response{
		Seq:             req.Seq,
		FullTranslation: text,
		Latency:         time.Since(start),
	}, nil
}
