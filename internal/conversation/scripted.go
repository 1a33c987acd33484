package conversation

import (
	"context"
	"log"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/qualify"
	"github.com/siftly/siftly/internal/script"
)

// Scripted asks a fixed sequence of questions and scores the answers once
// the last one arrives.
type Scripted struct {
	Catalog   *script.Catalog
	Qualifier Qualifier
}

// NewScripted creates the fixed-question policy.
func NewScripted(catalog *script.Catalog, q Qualifier) *Scripted {
	return &Scripted{Catalog: catalog, Qualifier: q}
}

// Mode implements Policy.
func (s *Scripted) Mode() string { return config.ModeScripted }

// InitialStatus implements Policy.
func (s *Scripted) InitialStatus() lead.Status { return lead.StatusAwaitingZip }

// Step implements Policy.
func (s *Scripted) Step(ctx context.Context, l *lead.Lead, body string, created bool) (Outcome, error) {
	if created || l.Status == lead.StatusNew {
		return s.ask(body, s.Catalog.Welcome(), lead.Patch{Status: lead.StatusPtr(lead.StatusAwaitingZip)}), nil
	}

	switch l.Status {
	case lead.StatusAwaitingZip:
		return s.ask(body, s.Catalog.AskProjectType(), lead.Patch{
			ZipCode: lead.StringPtr(body),
			Status:  lead.StatusPtr(lead.StatusAwaitingProjectType),
		}), nil

	case lead.StatusAwaitingProjectType:
		return s.ask(body, s.Catalog.AskTimelineBudget(), lead.Patch{
			ProjectType: lead.StringPtr(body),
			Status:      lead.StatusPtr(lead.StatusAwaitingTimelineBudget),
		}), nil

	case lead.StatusAwaitingTimelineBudget:
		return s.classify(ctx, l, body), nil

	case lead.StatusHot, lead.StatusWarm, lead.StatusCold:
		return acknowledge(s.Catalog.Acknowledge()), nil

	default:
		log.Printf("conversation: scripted policy got %s lead %s, acknowledging", l.Status, l.PhoneNumber)
		return acknowledge(s.Catalog.Acknowledge()), nil
	}
}

func (s *Scripted) ask(body, reply string, p lead.Patch) Outcome {
	p.AppendTurns = []lead.Turn{userTurn(body), assistantTurn(reply)}
	return Outcome{Patch: p, Reply: reply}
}

func (s *Scripted) classify(ctx context.Context, l *lead.Lead, body string) Outcome {
	res := s.Qualifier.Qualify(ctx, qualify.Input{Prior: l, Answer: body})

	reply := s.Catalog.Close()
	if res.Classification == lead.ClassHot {
		reply = s.Catalog.HotConfirmed(res.Score)
	}

	score, class := res.Score, res.Classification
	out := s.ask(body, reply, lead.Patch{
		TimelineBudget: lead.StringPtr(body),
		Status:         lead.StatusPtr(class.Status()),
		QualScore:      &score,
		Classification: &class,
	})
	out.Result = &res
	return out
}
