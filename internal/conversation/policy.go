package conversation

import (
	"context"

	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/oracle"
	"github.com/siftly/siftly/internal/qualify"
)

// Outcome is what a policy decides for one inbound message.
type Outcome struct {
	// Patch is committed against the lead version the step was computed from.
	// An empty patch means nothing is written.
	Patch lead.Patch

	// Reply is sent back to the lead. Empty means no reply.
	Reply string

	// Result is set when the step classified the lead.
	Result *qualify.Result
}

// Policy drives one conversation style.
type Policy interface {
	// Mode names the policy in logs and metrics.
	Mode() string

	// InitialStatus is the status a lead is created in on first contact.
	InitialStatus() lead.Status

	// Step computes the outcome of body for l. created reports that l was
	// created by this very message. Step must not write to the store.
	Step(ctx context.Context, l *lead.Lead, body string, created bool) (Outcome, error)
}

// Qualifier scores a qualification event. *qualify.Engine implements it.
type Qualifier interface {
	Qualify(ctx context.Context, in qualify.Input) qualify.Result
}

// Responder continues a conversation. *oracle.Responder implements it.
type Responder interface {
	Respond(ctx context.Context, transcript []lead.Turn) (oracle.ChatReply, error)
}

func userTurn(text string) lead.Turn {
	return lead.Turn{Role: lead.RoleUser, Text: text}
}

func assistantTurn(text string) lead.Turn {
	return lead.Turn{Role: lead.RoleAssistant, Text: text}
}

// acknowledge is the outcome for messages that arrive after classification.
func acknowledge(reply string) Outcome {
	return Outcome{Reply: reply}
}
