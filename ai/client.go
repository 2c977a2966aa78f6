// Package ai wraps a streaming chat-completion API behind a small
// prompt-in, chunks-out interface.
package ai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are the MyChat assistant. Keep replies short and friendly."

type Client struct {
	api   *openai.Client
	model string
}

// New builds a client for any OpenAI-compatible completion endpoint.
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// StreamReply sends prompt in streaming mode and invokes onChunk for every
// content increment. It returns the full concatenated reply. A ctx
// cancellation or onChunk error aborts the stream; the content received up
// to that point is still returned alongside the error.
func (c *Client) StreamReply(ctx context.Context, prompt string, onChunk func(string) error) (string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream:      true,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full []byte
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return string(full), nil
		}
		if err != nil {
			return string(full), err
		}
		if len(resp.Choices) == 0 {
			continue
		}

		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full = append(full, chunk...)
		if err := onChunk(chunk); err != nil {
			return string(full), err
		}
	}
}
