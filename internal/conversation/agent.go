package conversation

import (
	"context"
	"log"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/qualify"
	"github.com/siftly/siftly/internal/script"
)

// Agent lets the conversational oracle lead the dialogue and scores the
// transcript once the oracle reports the lead qualified.
type Agent struct {
	Catalog   *script.Catalog
	Responder Responder
	Qualifier Qualifier
}

// NewAgent creates the conversational policy.
func NewAgent(catalog *script.Catalog, r Responder, q Qualifier) *Agent {
	return &Agent{Catalog: catalog, Responder: r, Qualifier: q}
}

// Mode implements Policy.
func (a *Agent) Mode() string { return config.ModeConversational }

// InitialStatus implements Policy.
func (a *Agent) InitialStatus() lead.Status { return lead.StatusActive }

// Step implements Policy. The first message of a new lead is answered by the
// oracle in the same step as the creation. An oracle failure returns an
// error and leaves the lead untouched.
func (a *Agent) Step(ctx context.Context, l *lead.Lead, body string, _ bool) (Outcome, error) {
	switch l.Status {
	case lead.StatusActive, lead.StatusNew:
	case lead.StatusQualified:
		return acknowledge(a.Catalog.Acknowledge()), nil
	default:
		if !l.Status.Terminal() {
			log.Printf("conversation: agent policy got %s lead %s, acknowledging", l.Status, l.PhoneNumber)
		}
		return acknowledge(a.Catalog.Acknowledge()), nil
	}

	transcript := make([]lead.Turn, 0, len(l.Transcript)+2)
	transcript = append(transcript, l.Transcript...)
	transcript = append(transcript, userTurn(body))

	reply, err := a.Responder.Respond(ctx, transcript)
	if err != nil {
		return Outcome{}, err
	}

	// A NEW lead has to pass through ACTIVE before it can qualify.
	qualified := reply.Qualified && l.Status == lead.StatusActive

	text := reply.Text
	if text == "" && qualified {
		text = a.Catalog.Close()
	}
	transcript = append(transcript, assistantTurn(text))

	out := Outcome{
		Patch: lead.Patch{AppendTurns: transcript[len(l.Transcript):]},
		Reply: text,
	}
	if l.Status == lead.StatusNew {
		out.Patch.Status = lead.StatusPtr(lead.StatusActive)
	}
	if !qualified {
		return out, nil
	}

	prior := l.Clone()
	prior.Transcript = transcript
	res := a.Qualifier.Qualify(ctx, qualify.Input{Prior: prior})

	score, class := res.Score, res.Classification
	out.Patch.Status = lead.StatusPtr(lead.StatusQualified)
	out.Patch.QualScore = &score
	out.Patch.Classification = &class
	out.Result = &res
	return out, nil
}
