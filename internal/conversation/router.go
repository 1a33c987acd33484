// Package conversation routes inbound SMS messages through the active
// conversation policy and commits the outcome to the lead store.
package conversation

import (
	"context"
	"log"
	"strings"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/metrics"
	"github.com/siftly/siftly/internal/script"
)

// Message outcomes reported to metrics.
const (
	OutcomeInvalid      = "invalid"
	OutcomeOptOut       = "opt_out"
	OutcomeStarted      = "started"
	OutcomeAdvanced     = "advanced"
	OutcomeClassified   = "classified"
	OutcomeAcknowledged = "acknowledged"
	OutcomeError        = "error"
)

// optOutKeywords are matched case-insensitively against the whole trimmed body.
var optOutKeywords = map[string]bool{
	"STOP":        true,
	"QUIT":        true,
	"END":         true,
	"STOPALL":     true,
	"UNSUBSCRIBE": true,
	"CANCEL":      true,
}

// IsOptOut reports whether body is a carrier opt-out keyword.
func IsOptOut(body string) bool {
	return optOutKeywords[strings.ToUpper(strings.TrimSpace(body))]
}

// Inbound is one message received from the transport.
type Inbound struct {
	From string
	Body string
}

// Reply is the text to send back. Empty means send nothing.
type Reply struct {
	Text string
}

// Notifier is told about every committed classification.
type Notifier interface {
	LeadQualified(ctx context.Context, l *lead.Lead)
}

// Router handles inbound messages. It is safe for concurrent use.
type Router struct {
	store    lead.Store
	policy   Policy
	notifier Notifier
	catalog  *script.Catalog
	rec      metrics.Recorder
	locks    *keyLock
}

// Options configures a Router.
type Options struct {
	Store    lead.Store
	Policy   Policy
	Notifier Notifier
	Catalog  *script.Catalog
	Recorder metrics.Recorder
}

// NewRouter creates a router.
func NewRouter(opts Options) *Router {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = script.Default("")
	}
	return &Router{
		store:    opts.Store,
		policy:   opts.Policy,
		notifier: opts.Notifier,
		catalog:  catalog,
		rec:      metrics.OrNop(opts.Recorder),
		locks:    newKeyLock(),
	}
}

// Handle processes one inbound message and returns the reply. It never
// fails: transport input errors yield no reply, internal errors an apology.
func (r *Router) Handle(ctx context.Context, in Inbound) Reply {
	mode := r.policy.Mode()
	from := lead.NormalizePhone(in.From)
	body := strings.TrimSpace(in.Body)

	if from == "" || body == "" {
		log.Printf("conversation: %v", errors.NewInvalidRequest("inbound message requires From and Body"))
		r.rec.ObserveMessage(mode, OutcomeInvalid)
		return Reply{}
	}

	if IsOptOut(body) {
		log.Printf("conversation: opt-out from %s", from)
		r.rec.ObserveMessage(mode, OutcomeOptOut)
		return Reply{}
	}

	unlock := r.locks.Lock(from)
	defer unlock()

	reply, outcome, err := r.handle(ctx, from, body)
	if err != nil {
		log.Printf("conversation: %s message from %s failed: %v", mode, from, err)
		r.rec.ObserveMessage(mode, OutcomeError)
		return Reply{Text: r.catalog.Sorry()}
	}
	r.rec.ObserveMessage(mode, outcome)
	return Reply{Text: reply}
}

func (r *Router) handle(ctx context.Context, from, body string) (string, string, error) {
	current, created, err := r.load(ctx, from)
	if err != nil {
		return "", "", err
	}

	out, err := r.policy.Step(ctx, current, body, created)
	if err != nil {
		return "", "", err
	}
	if out.Patch.Empty() {
		return out.Reply, outcomeOf(out, created), nil
	}

	committed, out, err := r.commit(ctx, current, body, created, out)
	if err != nil {
		return "", "", err
	}

	if out.Patch.Qualifies() {
		source := "unknown"
		if out.Result != nil {
			source = string(out.Result.Source)
		}
		log.Printf("conversation: lead %s classified %s (%d/10, %s)", from, committed.Classification, lead.DerefInt(committed.QualScore), source)
		if committed.Classification == lead.ClassHot && r.notifier != nil {
			r.notifier.LeadQualified(ctx, committed)
		}
	}
	return out.Reply, outcomeOf(out, created), nil
}

// load returns the stored lead, creating it in the policy's initial status on
// first contact.
func (r *Router) load(ctx context.Context, from string) (*lead.Lead, bool, error) {
	l, err := r.store.Get(ctx, from)
	if err == nil {
		return l, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}
	return r.store.Create(ctx, from, r.policy.InitialStatus())
}

// commit applies out against current. On a version conflict the step is
// recomputed once from a fresh read; a second conflict falls back to
// last-writer-wins with the recomputed patch.
func (r *Router) commit(ctx context.Context, current *lead.Lead, body string, created bool, out Outcome) (*lead.Lead, Outcome, error) {
	committed, err := r.store.Apply(ctx, current.PhoneNumber, current.Version, out.Patch)
	if !errors.Is(err, errors.ErrConflict) {
		return committed, out, err
	}
	r.rec.IncConflict()

	current, err = r.store.Get(ctx, current.PhoneNumber)
	if err != nil {
		return nil, out, err
	}
	out, err = r.policy.Step(ctx, current, body, created)
	if err != nil {
		return nil, out, err
	}
	if out.Patch.Empty() {
		return current, out, nil
	}

	committed, err = r.store.Apply(ctx, current.PhoneNumber, current.Version, out.Patch)
	if !errors.Is(err, errors.ErrConflict) {
		return committed, out, err
	}
	r.rec.IncConflict()

	latest, err := r.store.Get(ctx, current.PhoneNumber)
	if err != nil {
		return nil, out, err
	}
	log.Printf("conversation: repeated conflict on %s (v%d), last writer wins", current.PhoneNumber, latest.Version)
	committed, err = r.store.Apply(ctx, latest.PhoneNumber, latest.Version, out.Patch)
	return committed, out, err
}

func outcomeOf(out Outcome, created bool) string {
	switch {
	case out.Patch.Qualifies():
		return OutcomeClassified
	case created:
		return OutcomeStarted
	case out.Patch.Empty():
		return OutcomeAcknowledged
	default:
		return OutcomeAdvanced
	}
}
