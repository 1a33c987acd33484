// Package claude is the Anthropic messages backend for the oracle package.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/oracle"
)

const defaultMaxTokens = 512

// Client wraps the official Anthropic Go client.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

var _ oracle.Completer = (*Client)(nil)

// New creates a client for model. Extra options (base URL, retries) are
// passed through to the SDK.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// Provider implements oracle.Completer.
func (c *Client) Provider() string { return "anthropic" }

// Complete implements oracle.Completer.
func (c *Client) Complete(ctx context.Context, req oracle.Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  toMessages(req.Messages),
	}

	system := req.System
	if req.JSON {
		// No JSON mode on this API; the instruction has to carry it.
		system = strings.TrimSpace(system + "\n\nReply with the JSON object only, no other text.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: system,
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Anthropic messages call failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("Anthropic returned an empty response")
	}

	var b strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}

// toMessages converts turns to Anthropic messages, merging consecutive turns
// from the same role since the API requires strict alternation.
func toMessages(msgs []oracle.Message) []anthropic.MessageParam {
	type group struct {
		role  lead.Role
		parts []string
	}
	var groups []group
	for _, m := range msgs {
		role := m.Role
		if role != lead.RoleAssistant {
			role = lead.RoleUser
		}
		if n := len(groups); n > 0 && groups[n-1].role == role {
			groups[n-1].parts = append(groups[n-1].parts, m.Text)
			continue
		}
		groups = append(groups, group{role: role, parts: []string{m.Text}})
	}

	out := make([]anthropic.MessageParam, 0, len(groups))
	for _, g := range groups {
		block := anthropic.NewTextBlock(strings.Join(g.parts, "\n\n"))
		if g.role == lead.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
