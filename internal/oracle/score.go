package oracle

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/metrics"
	"github.com/tidwall/gjson"
)

const scoringInstructions = `You are an expert lead qualifier for a roofing contractor. Analyze the customer's answers
and output a JSON object containing a qualification score (0-10) and a HOT/WARM/COLD classification.

Qualification rules (add points for these):
- Urgency: "Immediate" or "Emergency" = +4 points
- Budget: a budget of $5,000 or more, or an insurance claim = +3 points
- Project type: "Full Replacement" = +2 points
- Location: a valid US ZIP code = +1 point

Return ONLY a single JSON object with keys "score" (integer) and "classification" (string).`

// ScoreInput is what the scoring oracle sees: either the three scripted
// answers or a conversation transcript.
type ScoreInput struct {
	ZipCode        string
	ProjectType    string
	TimelineBudget string
	Transcript     []lead.Turn
}

// Scorer asks a provider to rate a lead.
type Scorer struct {
	c       Completer
	rec     metrics.Recorder
	timeout time.Duration
}

// NewScorer returns a Scorer that bounds each call by timeout.
func NewScorer(c Completer, timeout time.Duration, rec metrics.Recorder) *Scorer {
	return &Scorer{c: c, rec: rec, timeout: timeout}
}

// Provider names the backend.
func (s *Scorer) Provider() string { return s.c.Provider() }

// Score returns the raw, unclamped score reported by the provider.
func (s *Scorer) Score(ctx context.Context, in ScoreInput) (int, error) {
	text, err := call(ctx, s.c, s.rec, "score", s.timeout, Request{
		System:    scoringInstructions,
		Messages:  []Message{{Role: lead.RoleUser, Text: scoringPrompt(in)}},
		JSON:      true,
		MaxTokens: 100,
	})
	if err != nil {
		return 0, errors.NewOracleFailure(s.c.Provider(), err)
	}

	score, err := ParseScore(text)
	if err != nil {
		return 0, errors.NewOracleFailure(s.c.Provider(), err)
	}
	return score, nil
}

func scoringPrompt(in ScoreInput) string {
	var b strings.Builder
	if len(in.Transcript) > 0 {
		b.WriteString("Conversation with the customer:\n")
		for _, t := range in.Transcript {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
		return b.String()
	}
	fmt.Fprintf(&b, "ZIP code answer: %s\n", in.ZipCode)
	fmt.Fprintf(&b, "Project type answer: %s\n", in.ProjectType)
	fmt.Fprintf(&b, "Timeline and budget answer: %s\n", in.TimelineBudget)
	return b.String()
}

// ParseScore extracts the "score" field from a provider reply. It tolerates
// code fences and prose around the JSON object, and numeric strings or
// fractional numbers for the score itself. The result is bounded to
// [lead.MinScore, lead.MaxScore].
func ParseScore(text string) (int, error) {
	obj, err := extractObject(text)
	if err != nil {
		return 0, err
	}

	raw := gjson.Get(obj, "score")
	switch raw.Type {
	case gjson.Null:
		if !raw.Exists() {
			return 0, fmt.Errorf("oracle reply has no score field")
		}
		return 0, fmt.Errorf("oracle score is null")
	case gjson.Number:
		return roundScore(raw.Float())
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("oracle score %q is not a number", raw.Str)
		}
		return roundScore(f)
	default:
		return 0, fmt.Errorf("oracle score has unexpected value %s", raw.Raw)
	}
}

// roundScore bounds f before converting so huge values cannot overflow int.
func roundScore(f float64) (int, error) {
	if math.IsNaN(f) {
		return 0, fmt.Errorf("oracle score is NaN")
	}
	f = math.Max(lead.MinScore, math.Min(lead.MaxScore, f))
	return int(math.Round(f)), nil
}

// extractObject returns the outermost JSON object found in text.
func extractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("oracle reply contains no JSON object")
	}

	obj := text[start : end+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("oracle reply is not valid JSON")
	}
	return obj, nil
}
