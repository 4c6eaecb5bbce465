// Package whisper transcribes captured utterances through OpenAI's Whisper
// API. One WAV blob in, best-effort plain text out; an empty transcript is a
// valid result, not an error.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kolvoice/kol-core/core/speechtotext"
)

type Client struct {
	api   *openai.Client
	model string
}

type ClientOption func(*Client)

// WithModel overrides the transcription model (defaults to whisper-1).
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		api:   openai.NewClient(apiKey),
		model: openai.Whisper1,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// TranscribeBlob transcribes one utterance encoded as a 16-bit PCM WAV blob.
func (c *Client) TranscribeBlob(ctx context.Context, wav []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "transcribe utterance")
	defer span.End()

	request := openai.AudioRequest{
		Model:    c.model,
		Reader:   bytes.NewReader(wav),
		FilePath: "utterance.wav",
	}
	// "auto" leaves language detection to the model.
	if language := strings.TrimSpace(options.Language); language != "" && language != "auto" {
		request.Language = language
	}

	response, err := c.api.CreateTranscription(ctx, request)
	if err != nil {
		err = fmt.Errorf("whisper transcription failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("transcript.length", len(response.Text)))
	return response.Text, nil
}
