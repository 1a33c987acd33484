package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/memstore"
	"github.com/siftly/siftly/internal/notify"
	"github.com/siftly/siftly/internal/oracle"
	"github.com/siftly/siftly/internal/qualify"
	"github.com/siftly/siftly/internal/script"
	"github.com/stretchr/testify/require"
)

const phone = "+15551234567"

type fakeNotifier struct {
	mu    sync.Mutex
	leads []*lead.Lead
}

func (f *fakeNotifier) LeadQualified(_ context.Context, l *lead.Lead) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, l)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.leads)
}

type fakeResponder struct {
	mu      sync.Mutex
	replies []oracle.ChatReply
	err     error
	calls   [][]lead.Turn
}

func (f *fakeResponder) Respond(_ context.Context, transcript []lead.Turn) (oracle.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]lead.Turn(nil), transcript...))
	if f.err != nil {
		return oracle.ChatReply{}, f.err
	}
	if len(f.replies) == 0 {
		return oracle.ChatReply{Text: "Tell me more."}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func newScripted(t *testing.T) (*Router, *memstore.Store, *fakeNotifier, *script.Catalog) {
	t.Helper()
	store := memstore.New()
	notifier := &fakeNotifier{}
	catalog := script.Default("Acme Roofing")
	r := NewRouter(Options{
		Store:    store,
		Policy:   NewScripted(catalog, qualify.NewEngine(qualify.Options{})),
		Notifier: notifier,
		Catalog:  catalog,
	})
	return r, store, notifier, catalog
}

func newAgent(t *testing.T, resp Responder) (*Router, *memstore.Store, *fakeNotifier, *script.Catalog) {
	t.Helper()
	store := memstore.New()
	notifier := &fakeNotifier{}
	catalog := script.Default("Acme Roofing")
	r := NewRouter(Options{
		Store:    store,
		Policy:   NewAgent(catalog, resp, qualify.NewEngine(qualify.Options{})),
		Notifier: notifier,
		Catalog:  catalog,
	})
	return r, store, notifier, catalog
}

func send(r *Router, from, body string) string {
	return r.Handle(context.Background(), Inbound{From: from, Body: body}).Text
}

func TestScripted_HotLeadEndToEnd(t *testing.T) {
	ctx := context.Background()
	r, store, notifier, catalog := newScripted(t)

	require.Equal(t, catalog.Welcome(), send(r, phone, "Hi, I need a roofer"))
	l, err := store.Get(ctx, phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusAwaitingZip, l.Status)

	require.Equal(t, catalog.AskProjectType(), send(r, phone, "ZIP 12345"))
	require.Equal(t, catalog.AskTimelineBudget(), send(r, phone, "Full Replacement"))

	reply := send(r, phone, "Immediate, $12k budget")
	require.Equal(t, catalog.HotConfirmed(10), reply)
	require.Contains(t, reply, "10/10")

	l, err = store.Get(ctx, phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusHot, l.Status)
	require.Equal(t, lead.ClassHot, l.Classification)
	require.Equal(t, 10, lead.DerefInt(l.QualScore))
	require.Equal(t, "ZIP 12345", lead.Deref(l.ZipCode))
	require.Equal(t, "Full Replacement", lead.Deref(l.ProjectType))
	require.Equal(t, "Immediate, $12k budget", lead.Deref(l.TimelineBudget))
	require.NotNil(t, l.QualifiedAt)
	require.Len(t, l.Transcript, 8)

	require.Equal(t, 1, notifier.count())
	alert := notify.ComposeAlert(notifier.leads[0])
	require.Contains(t, alert, "12345")
	require.Contains(t, alert, "10/10")

	// Further messages are acknowledged and change nothing.
	require.Equal(t, catalog.Acknowledge(), send(r, phone, "Any update?"))
	after, err := store.Get(ctx, phone)
	require.NoError(t, err)
	require.Equal(t, l, after)
	require.Equal(t, 1, notifier.count())
}

func TestScripted_ColdLeadGetsClosing(t *testing.T) {
	r, store, notifier, catalog := newScripted(t)

	send(r, phone, "hello")
	send(r, phone, "somewhere")
	send(r, phone, "gutter cleaning")
	require.Equal(t, catalog.Close(), send(r, phone, "next year, small budget"))

	l, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusCold, l.Status)
	require.Equal(t, 0, lead.DerefInt(l.QualScore))
	require.Zero(t, notifier.count())
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, oracle.ScoreInput) (int, error) {
	return 0, fmt.Errorf("scoring backend unavailable")
}

func (failingScorer) Provider() string { return "failing" }

func TestScripted_ScorerFailureClosesCold(t *testing.T) {
	store := memstore.New()
	notifier := &fakeNotifier{}
	catalog := script.Default("Acme Roofing")
	r := NewRouter(Options{
		Store:    store,
		Policy:   NewScripted(catalog, qualify.NewEngine(qualify.Options{Scorer: failingScorer{}})),
		Notifier: notifier,
		Catalog:  catalog,
	})

	send(r, phone, "hello")
	send(r, phone, "ZIP 12345")
	send(r, phone, "Full Replacement")
	require.Equal(t, catalog.Close(), send(r, phone, "Immediate, $12k budget"))

	l, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusCold, l.Status)
	require.Equal(t, lead.ClassCold, l.Classification)
	require.NotNil(t, l.QualScore)
	require.Equal(t, 0, *l.QualScore)
	require.Zero(t, notifier.count())
}

func TestRouter_OptOutTouchesNothing(t *testing.T) {
	r, store, _, _ := newScripted(t)

	for _, kw := range []string{"STOP", "stop", "  Quit ", "END", "unsubscribe", "Cancel", "STOPALL"} {
		require.Empty(t, send(r, phone, kw), kw)
	}
	_, err := store.Get(context.Background(), phone)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	send(r, phone, "hi")
	before, err := store.Get(context.Background(), phone)
	require.NoError(t, err)

	require.Empty(t, send(r, phone, "STOP"))
	require.Empty(t, send(r, phone, "STOP"))

	after, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRouter_MissingFieldsAreIgnored(t *testing.T) {
	r, store, _, _ := newScripted(t)

	require.Empty(t, send(r, "", "hello"))
	require.Empty(t, send(r, phone, "   "))

	_, total, err := store.List(context.Background(), lead.ListFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestIsOptOut(t *testing.T) {
	require.True(t, IsOptOut(" stop\n"))
	require.False(t, IsOptOut("please stop calling"))
	require.False(t, IsOptOut("STOPPED"))
}

func TestScripted_StatusNeverMovesBackward(t *testing.T) {
	r, store, _, _ := newScripted(t)

	prev := -1
	for _, body := range []string{"hi", "90210", "B", "emergency, insurance", "one more", "and another"} {
		send(r, phone, body)
		l, err := store.Get(context.Background(), phone)
		require.NoError(t, err)
		require.GreaterOrEqual(t, l.Status.Rank(), prev, "after %q", body)
		prev = l.Status.Rank()
	}
}

func TestRouter_ConcurrentMessagesSerializePerPhone(t *testing.T) {
	r, store, _, _ := newScripted(t)

	bodies := []string{"hi", "12345", "Full Replacement", "Immediate, $20k"}
	var wg sync.WaitGroup
	for _, b := range bodies {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			send(r, phone, body)
		}(b)
	}
	wg.Wait()

	l, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.True(t, l.Status.Terminal(), "status = %s", l.Status)
	require.Equal(t, int64(5), l.Version)
	require.Len(t, l.Transcript, 8)
	require.Zero(t, r.locks.size())
}

func TestRouter_ManyPhonesInParallel(t *testing.T) {
	r, store, notifier, _ := newScripted(t)

	const leads = 20
	var wg sync.WaitGroup
	for i := 0; i < leads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := fmt.Sprintf("+1555000%04d", i)
			for _, body := range []string{"hi", "12345", "Full Replacement", "Immediate, $12k"} {
				send(r, from, body)
			}
		}(i)
	}
	wg.Wait()

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, leads, counts[lead.StatusHot])
	require.Equal(t, leads, notifier.count())
}

// racingStore commits a competing write before the first n Apply calls.
type racingStore struct {
	*memstore.Store
	mu    sync.Mutex
	races int
}

func (s *racingStore) Apply(ctx context.Context, phone string, version int64, p lead.Patch) (*lead.Lead, error) {
	s.mu.Lock()
	race := s.races > 0
	if race {
		s.races--
	}
	s.mu.Unlock()

	if race {
		current, err := s.Store.Get(ctx, phone)
		if err != nil {
			return nil, err
		}
		if _, err := s.Store.Apply(ctx, phone, current.Version, lead.Patch{}); err != nil {
			return nil, err
		}
	}
	return s.Store.Apply(ctx, phone, version, p)
}

func TestRouter_RetriesOnceAfterConflict(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{Store: memstore.New()}
	catalog := script.Default("Acme")
	r := NewRouter(Options{Store: store, Policy: NewScripted(catalog, qualify.NewEngine(qualify.Options{})), Catalog: catalog})

	send(r, phone, "hi")
	store.races = 1
	require.Equal(t, catalog.AskProjectType(), send(r, phone, "12345"))

	l, err := store.Get(ctx, phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusAwaitingProjectType, l.Status)
	require.Equal(t, "12345", lead.Deref(l.ZipCode))
	require.Len(t, l.Transcript, 4)
}

func TestRouter_LastWriterWinsAfterRepeatedConflict(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{Store: memstore.New()}
	notifier := &fakeNotifier{}
	catalog := script.Default("Acme")
	r := NewRouter(Options{Store: store, Policy: NewScripted(catalog, qualify.NewEngine(qualify.Options{})), Notifier: notifier, Catalog: catalog})

	send(r, phone, "hi")
	send(r, phone, "12345")
	send(r, phone, "Full Replacement")

	store.races = 2
	require.Equal(t, catalog.HotConfirmed(10), send(r, phone, "Immediate, $12k"))

	l, err := store.Get(ctx, phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusHot, l.Status)
	require.Equal(t, 10, lead.DerefInt(l.QualScore))
	require.Equal(t, 1, notifier.count())
}

// failingStore fails every Apply.
type failingStore struct {
	*memstore.Store
}

func (failingStore) Apply(context.Context, string, int64, lead.Patch) (*lead.Lead, error) {
	return nil, errors.NewInternal(fmt.Errorf("disk full"))
}

func TestRouter_StoreFailureYieldsApology(t *testing.T) {
	catalog := script.Default("Acme")
	r := NewRouter(Options{Store: failingStore{memstore.New()}, Policy: NewScripted(catalog, qualify.NewEngine(qualify.Options{})), Catalog: catalog})
	require.Equal(t, catalog.Sorry(), send(r, phone, "hi"))
}

func TestAgent_FirstMessageIsAnsweredByOracle(t *testing.T) {
	resp := &fakeResponder{replies: []oracle.ChatReply{{Text: "Happy to help! What is the project ZIP code?"}}}
	r, store, _, _ := newAgent(t, resp)

	require.Equal(t, "Happy to help! What is the project ZIP code?", send(r, phone, "Hi, my roof is leaking"))

	l, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusActive, l.Status)
	require.Len(t, l.Transcript, 2)
	require.Equal(t, lead.RoleUser, l.Transcript[0].Role)
	require.Equal(t, "Hi, my roof is leaking", l.Transcript[0].Text)
	require.Equal(t, lead.RoleAssistant, l.Transcript[1].Role)

	require.Len(t, resp.calls, 1)
	require.Len(t, resp.calls[0], 1)
}

func TestAgent_QualifiesFromTranscript(t *testing.T) {
	resp := &fakeResponder{replies: []oracle.ChatReply{
		{Text: "What's the ZIP and the kind of work?"},
		{Text: "Thanks! Someone will call you shortly.", Qualified: true, Structured: true},
	}}
	r, store, notifier, _ := newAgent(t, resp)

	send(r, phone, "Emergency! Water coming through the ceiling")
	reply := send(r, phone, "ZIP 12345, full replacement, insurance claim")
	require.Equal(t, "Thanks! Someone will call you shortly.", reply)

	l, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusQualified, l.Status)
	require.Equal(t, lead.ClassHot, l.Classification)
	require.Equal(t, 10, lead.DerefInt(l.QualScore))
	require.Len(t, l.Transcript, 4)
	require.Equal(t, 1, notifier.count())

	// The oracle always receives the full transcript ending with the latest message.
	last := resp.calls[len(resp.calls)-1]
	require.Len(t, last, 3)
	require.Equal(t, "ZIP 12345, full replacement, insurance claim", last[2].Text)
}

func TestAgent_OracleFailurePersistsOnlyCreation(t *testing.T) {
	resp := &fakeResponder{err: errors.NewOracleFailure("fake", fmt.Errorf("timeout"))}
	r, store, _, catalog := newAgent(t, resp)

	require.Equal(t, catalog.Sorry(), send(r, phone, "hello"))

	l, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusActive, l.Status)
	require.Empty(t, l.Transcript)
	require.Equal(t, int64(1), l.Version)
}

func TestAgent_QualifiedLeadIsAcknowledged(t *testing.T) {
	resp := &fakeResponder{replies: []oracle.ChatReply{{Text: "", Qualified: true, Structured: true}}}
	r, store, _, catalog := newAgent(t, resp)

	require.Equal(t, catalog.Close(), send(r, phone, "small repair in 90210 sometime next year"))
	l, err := store.Get(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, lead.StatusQualified, l.Status)

	require.Equal(t, catalog.Acknowledge(), send(r, phone, "thanks"))
	require.Len(t, resp.calls, 1)
}

func TestAgent_SentinelFallback(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantQualified bool
		wantReply     string
	}{
		{
			name:          "plain text with sentinel",
			raw:           "Great, we have everything we need. lead_qualified",
			wantQualified: true,
			wantReply:     "Great, we have everything we need.",
		},
		{
			name:      "structured flag overrides sentinel",
			raw:       `{"reply": "Almost there LEAD_QUALIFIED", "qualified": false}`,
			wantReply: "Almost there",
		},
		{
			name:      "plain text without sentinel",
			raw:       "What is your budget?",
			wantReply: "What is your budget?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := oracle.CompleterFunc{Name: "fake", Fn: func(context.Context, oracle.Request) (string, error) {
				calls++
				if calls == 1 {
					return `{"reply": "Hi! What is the project ZIP?", "qualified": false}`, nil
				}
				return tt.raw, nil
			}}
			responder, err := oracle.NewResponder(c, oracle.ResponderConfig{Sentinel: "LEAD_QUALIFIED", MaxTranscriptTokens: 1000})
			require.NoError(t, err)

			r, store, _, _ := newAgent(t, responder)
			send(r, phone, "hello")
			reply := send(r, phone, "12345, replace the roof")
			require.Equal(t, tt.wantReply, reply)
			require.False(t, strings.Contains(strings.ToLower(reply), "lead_qualified"))

			l, err := store.Get(context.Background(), phone)
			require.NoError(t, err)
			require.Equal(t, tt.wantQualified, l.Status == lead.StatusQualified)
		})
	}
}

func TestKeyLock_ReleasesEntries(t *testing.T) {
	k := newKeyLock()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	require.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	require.Zero(t, k.size())
}
