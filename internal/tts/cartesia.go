package tts

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

	"github.com/lexiqai/live-interpreter/internal/audio"
	"github.com/lexiqai/live-interpreter/internal/observability"
)

const (
	defaultCartesiaURL     = "https://api.cartesia.ai"
	cartesiaVersion        = "2025-04-16"
	cartesiaSampleRate     = 24000
	defaultCartesiaVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
	defaultCartesiaModelID = "sonic-turbo"

	// 100ms of 24kHz PCM16.
	chunkBytes = 4800
)

// CartesiaConfig holds configuration for the Cartesia client.
type CartesiaConfig struct {
	APIKey     string
	BaseURL    string
	VoiceID    string
	ModelID    string
	Language   string
	Output     audio.Format
	OutputRate int // client sample rate; synthesis always runs at 24kHz
}

// CartesiaClient implements Synthesizer with Cartesia's bytes endpoint.
type CartesiaClient struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	language   string
	encoder    audio.Encoder
	httpClient *http.Client
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type cartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
}

// NewCartesiaClient creates a new Cartesia TTS client.
func NewCartesiaClient(cfg CartesiaConfig) *CartesiaClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultCartesiaURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultCartesiaVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultCartesiaModelID
	}
	if cfg.Output == "" {
		cfg.Output = audio.FormatPCM16
	}
	if cfg.OutputRate <= 0 {
		cfg.OutputRate = cartesiaSampleRate
	}

	return &CartesiaClient{
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		voiceID:  cfg.VoiceID,
		modelID:  cfg.ModelID,
		language: cfg.Language,
		encoder: audio.Encoder{
			Format:     cfg.Output,
			InputRate:  cartesiaSampleRate,
			OutputRate: cfg.OutputRate,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Synthesize implements Synthesizer.
func (c *CartesiaClient) Synthesize(ctx context.Context, text string, emit func(AudioChunk) error) error {
	body, err := json.Marshal(cartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: c.voiceID},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: cartesiaSampleRate,
		},
		Language: c.language,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("cartesia API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	total := 0
	for {
		buf := make([]byte, chunkBytes)
		// ReadFull only returns a short read at the end of the stream, where a
		// dangling odd byte is dropped.
		n, readErr := io.ReadFull(resp.Body, buf)
		if whole := n - n%2; whole > 0 {
			encoded, err := c.encoder.Encode(buf[:whole])
			if err != nil {
				return fmt.Errorf("failed to encode audio: %w", err)
			}
			if err := emit(AudioChunk{Data: encoded, Format: c.encoder.Format, SampleRate: c.encoder.OutputRate}); err != nil {
				return err
			}
			observability.RecordAudioBytes("out", len(encoded))
			total += whole
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read audio: %w", readErr)
		}
	}

	if total == 0 {
		return errors.New("cartesia returned empty audio")
	}
	return nil
}
