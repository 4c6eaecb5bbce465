// Package openai is a chat backend on top of the OpenAI API, offering both a
// blocking completion and a cancellable streaming completion.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kolvoice/kol-core/core/llms"
)

const defaultModel = openai.GPT4oMini

type Client struct {
	api   *openai.Client
	model string
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		api:   openai.NewClient(apiKey),
		model: defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Complete generates the full response in one blocking call.
func (c *Client) Complete(ctx context.Context, messages []llms.Message, opts ...llms.PromptOption) (string, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.resolveModel(options),
		Messages: toOpenAIMessages(options.SystemPrompt, messages),
	})
	if err != nil {
		err = fmt.Errorf("chat completion failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	content := response.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("response.length", len(content)))
	return content, nil
}

// StreamComplete returns a stream of response text deltas. The request is not
// issued until the stream is iterated.
func (c *Client) StreamComplete(messages []llms.Message, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &stream{
		api:      c.api,
		model:    c.resolveModel(options),
		messages: toOpenAIMessages(options.SystemPrompt, messages),
	}
}

func (c *Client) resolveModel(options llms.PromptOptions) string {
	if options.Model != "" {
		return options.Model
	}
	return c.model
}

type stream struct {
	api      *openai.Client
	model    string
	messages []openai.ChatCompletionMessage
}

func (s *stream) Chunks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm streaming")
		defer span.End()

		completionStream, err := s.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: s.messages,
			Stream:   true,
		})
		if err != nil {
			err = fmt.Errorf("failed to open completion stream: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}
		defer completionStream.Close()

		for {
			response, err := completionStream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					// Cancellation is not a stream failure.
					return
				}
				err = fmt.Errorf("completion stream failed: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", err)
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			if delta := response.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

func toOpenAIMessages(systemPrompt string, messages []llms.Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, message := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}
	return converted
}
