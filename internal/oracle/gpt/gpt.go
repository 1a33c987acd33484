// Package gpt is the OpenAI chat-completions backend for the oracle package.
package gpt

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/oracle"
)

// Client wraps the official OpenAI Go client.
type Client struct {
	client openai.Client
	model  string
}

var _ oracle.Completer = (*Client)(nil)

// New creates a client for model. Extra options (base URL, retries) are
// passed through to the SDK.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Provider implements oracle.Completer.
func (c *Client) Provider() string { return "openai" }

// Complete implements oracle.Completer.
func (c *Client) Complete(ctx context.Context, req oracle.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case lead.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text))
		default:
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
