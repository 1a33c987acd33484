package ops

import (
	"context"

	"github.com/siftly/siftly/internal/lead"
)

// StatsOutput summarizes the lead funnel.
type StatsOutput struct {
	Total      int                 `json:"total"`
	InProgress int                 `json:"in_progress"`
	Classified int                 `json:"classified"`
	ByStatus   map[lead.Status]int `json:"by_status"`
}

// Stats counts leads per status.
func Stats(ctx context.Context, store lead.Counter) (*StatsOutput, error) {
	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	out := &StatsOutput{ByStatus: make(map[lead.Status]int, len(counts))}
	for status, n := range counts {
		out.ByStatus[status] = n
		out.Total += n
		if status.Terminal() {
			out.Classified += n
		} else {
			out.InProgress += n
		}
	}
	return out, nil
}
