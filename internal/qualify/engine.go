// Package qualify turns a lead's answers into a score and a HOT/WARM/COLD
// classification, either with the local rubric or through a scoring oracle.
package qualify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/metrics"
	"github.com/siftly/siftly/internal/oracle"
)

// Source records where a score came from.
type Source string

const (
	SourceRubric   Source = "rubric"
	SourceOracle   Source = "oracle"
	SourceFallback Source = "fallback"
)

// DefaultCacheSize bounds the number of memoised qualification events.
const DefaultCacheSize = 1024

// Result is the outcome of one qualification event.
type Result struct {
	Score          int                 `json:"score"`
	Classification lead.Classification `json:"classification"`
	Source         Source              `json:"source"`

	// EventID identifies the qualification event (a digest of its inputs).
	EventID string `json:"event_id"`
}

// Fallback is the safe default used whenever scoring cannot proceed.
func Fallback(eventID string) Result {
	return Result{Score: 0, Classification: lead.ClassCold, Source: SourceFallback, EventID: eventID}
}

// Input is one qualification request.
type Input struct {
	// Prior is the lead as stored before this step; nil when no record exists.
	// For conversational leads its transcript must already include the turns
	// of the current exchange.
	Prior *lead.Lead

	// Answer is the final timeline/budget answer on the scripted path.
	Answer string
}

// Answers returns the rubric view of in.
func (in Input) Answers() Answers {
	if in.Prior == nil {
		return Answers{}
	}
	if in.Prior.Status.Conversational() {
		return Answers{Transcript: in.Prior.Transcript}
	}
	return Answers{
		ZipCode:        lead.Deref(in.Prior.ZipCode),
		ProjectType:    lead.Deref(in.Prior.ProjectType),
		TimelineBudget: in.Answer,
	}
}

// EventID digests the normalised inputs of a qualification event. Identical
// answers from the same phone always produce the same ID.
func EventID(in Input) string {
	h := sha256.New()
	if in.Prior != nil {
		fmt.Fprintf(h, "%s\x00", in.Prior.PhoneNumber)
	}
	a := in.Answers()
	for _, s := range []string{a.ZipCode, a.ProjectType, a.TimelineBudget} {
		fmt.Fprintf(h, "%s\x00", normalize(s))
	}
	for _, t := range a.Transcript {
		fmt.Fprintf(h, "%s:%s\x00", t.Role, normalize(t.Text))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Scorer is the oracle contract the engine depends on.
type Scorer interface {
	Score(ctx context.Context, in oracle.ScoreInput) (int, error)
	Provider() string
}

// Options configures an Engine.
type Options struct {
	// Scorer delegates scoring to an oracle. Nil selects the local rubric.
	Scorer Scorer

	// CacheSize bounds memoised results; 0 means DefaultCacheSize.
	CacheSize int

	Recorder metrics.Recorder
}

// Engine qualifies leads. It is safe for concurrent use.
type Engine struct {
	scorer Scorer
	rec    metrics.Recorder

	mu    sync.Mutex
	cache *lru.Cache
	group singleflight.Group
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Engine{
		scorer: opts.Scorer,
		rec:    metrics.OrNop(opts.Recorder),
		cache:  lru.New(size),
	}
}

// Qualify scores one qualification event. It never fails: any problem yields
// the (0, COLD) fallback. Results are memoised per event, so repeating a call
// with identical inputs returns the identical result even when an oracle is
// involved, and concurrent identical calls share a single oracle request.
func (e *Engine) Qualify(ctx context.Context, in Input) Result {
	eventID := EventID(in)
	if in.Prior == nil {
		return Fallback(eventID)
	}

	if r, ok := e.cached(eventID); ok {
		return r
	}

	v, _, _ := e.group.Do(eventID, func() (any, error) {
		if r, ok := e.cached(eventID); ok {
			return r, nil
		}
		r := e.score(ctx, in, eventID)
		e.store(eventID, r)
		e.rec.ObserveQualification(string(r.Classification), string(r.Source))
		return r, nil
	})
	return v.(Result)
}

func (e *Engine) score(ctx context.Context, in Input, eventID string) Result {
	answers := in.Answers()
	if e.scorer == nil {
		score := RubricScore(answers)
		return Result{Score: score, Classification: Classify(score), Source: SourceRubric, EventID: eventID}
	}

	raw, err := e.scorer.Score(ctx, oracle.ScoreInput{
		ZipCode:        answers.ZipCode,
		ProjectType:    answers.ProjectType,
		TimelineBudget: answers.TimelineBudget,
		Transcript:     answers.Transcript,
	})
	if err != nil {
		log.Printf("qualify: %s scoring failed for %s, using fallback: %v", e.scorer.Provider(), in.Prior.PhoneNumber, err)
		return Fallback(eventID)
	}

	score := Clamp(raw)
	return Result{Score: score, Classification: Classify(score), Source: SourceOracle, EventID: eventID}
}

func (e *Engine) cached(eventID string) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.cache.Get(eventID)
	if !ok {
		return Result{}, false
	}
	return v.(Result), true
}

func (e *Engine) store(eventID string, r Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Add(eventID, r)
}
