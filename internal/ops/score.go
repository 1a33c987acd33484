package ops

import (
	"context"
	"strings"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/qualify"
)

// dryRunPhone addresses the synthetic lead scored by Score.
const dryRunPhone = "dry-run"

// ScoreInput contains the answers to score.
type ScoreInput struct {
	ZipCode        string
	ProjectType    string
	TimelineBudget string
}

// ScoreOutput is a dry-run qualification result.
type ScoreOutput struct {
	qualify.Result
	Signals qualify.Signals `json:"signals"`
}

// Score qualifies a set of answers without touching any stored lead. With a
// nil engine the local rubric is used.
func Score(ctx context.Context, engine *qualify.Engine, input ScoreInput) (*ScoreOutput, error) {
	if strings.TrimSpace(input.ZipCode+input.ProjectType+input.TimelineBudget) == "" {
		return nil, errors.NewInvalidRequest("at least one answer is required")
	}
	if engine == nil {
		engine = qualify.NewEngine(qualify.Options{CacheSize: 1})
	}

	prior := &lead.Lead{
		PhoneNumber: dryRunPhone,
		Status:      lead.StatusAwaitingTimelineBudget,
		ZipCode:     lead.StringPtr(input.ZipCode),
		ProjectType: lead.StringPtr(input.ProjectType),
	}
	in := qualify.Input{Prior: prior, Answer: input.TimelineBudget}

	return &ScoreOutput{
		Result:  engine.Qualify(ctx, in),
		Signals: qualify.Detect(in.Answers()),
	}, nil
}
