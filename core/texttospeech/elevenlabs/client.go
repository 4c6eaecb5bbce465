// Package elevenlabs synthesizes speech through the ElevenLabs API. Each
// call fetches the audio for one sentence fragment; cancelling the context
// aborts the in-flight request.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kolvoice/kol-core/core/audio"
	"github.com/kolvoice/kol-core/core/texttospeech"
)

const (
	defaultVoiceID = "EXAVITQu4vr4xnSDxMaL"
	defaultModelID = "eleven_multilingual_v2"
)

type Client struct {
	apiKey     string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithVoice(voiceID string) ClientOption {
	return func(c *Client) { c.voiceID = voiceID }
}

func WithModel(modelID string) ClientOption {
	return func(c *Client) { c.modelID = modelID }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient builds a client for the given API key, falling back to the
// ELEVENLABS_API_KEY environment variable when empty.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key not found")
	}

	client := &Client{
		apiKey:     apiKey,
		voiceID:    defaultVoiceID,
		modelID:    defaultModelID,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Synthesize fetches the spoken audio for text as raw PCM in the requested
// encoding (defaults to mono 16kHz linear16).
func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	options := texttospeech.SynthesisOptions{
		VoiceID:      c.voiceID,
		ModelID:      c.modelID,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.VoiceID == "" {
		options.VoiceID = c.voiceID
	}
	if options.ModelID == "" {
		options.ModelID = c.modelID
	}

	ctx, span := tracer.Start(ctx, "synthesize speech fragment")
	defer span.End()
	span.SetAttributes(attribute.Int("fragment.length", len(text)))

	outputFormat, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse("https://api.elevenlabs.io/v1/text-to-speech/" + options.VoiceID)
	query := base.Query()
	query.Set("output_format", outputFormat)
	base.RawQuery = query.Encode()

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": options.ModelID,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("elevenlabs returned status %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error reading audio response: %w", err)
	}

	return pcm, nil
}

func convertEncoding(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 16000:
			return "pcm_16000", nil
		case 22050:
			return "pcm_22050", nil
		case 24000:
			return "pcm_24000", nil
		case 44100:
			return "pcm_44100", nil
		}
		return "", fmt.Errorf("unsupported sample rate %d for linear16", encoding.SampleRate)
	case audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return "", fmt.Errorf("unsupported sample rate %d for mulaw", encoding.SampleRate)
		}
		return "ulaw_8000", nil
	}
	return "", fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
}
