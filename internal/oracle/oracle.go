// Package oracle wraps language-model providers behind two narrow contracts:
// a Scorer that rates a lead's answers and a Responder that continues an SMS
// conversation. Providers only need to implement Completer.
package oracle

import (
	"context"
	"time"

	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/metrics"
)

// Message is one chat message sent to a provider.
type Message struct {
	Role lead.Role
	Text string
}

// Request is a provider-neutral completion request.
type Request struct {
	System   string
	Messages []Message

	// JSON asks the provider for a single JSON object in the reply.
	JSON bool

	// MaxTokens bounds the completion length. 0 means provider default.
	MaxTokens int
}

// Completer is implemented by each provider client.
type Completer interface {
	// Complete returns the text of the first completion choice.
	Complete(ctx context.Context, req Request) (string, error)

	// Provider names the backend for logs and metrics.
	Provider() string
}

// call runs one completion under timeout and records it.
func call(ctx context.Context, c Completer, rec metrics.Recorder, kind string, timeout time.Duration, req Request) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.Complete(ctx, req)
	metrics.OrNop(rec).ObserveOracle(c.Provider(), kind, err == nil, time.Since(start))
	return text, err
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc struct {
	Name string
	Fn   func(ctx context.Context, req Request) (string, error)
}

// Complete calls f.Fn.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f.Fn(ctx, req)
}

// Provider returns f.Name.
func (f CompleterFunc) Provider() string { return f.Name }
