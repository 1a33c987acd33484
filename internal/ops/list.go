package ops

import (
	"context"

	"github.com/siftly/siftly/internal/lead"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Status string // optional filter
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []LeadSummary `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// List retrieves lead summaries with pagination, most recently updated first.
func List(ctx context.Context, store lead.Lister, input ListInput) (*ListOutput, error) {
	status, err := ParseStatus(input.Status)
	if err != nil {
		return nil, err
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	// Ensure offset is non-negative
	offset := max(input.Offset, 0)

	leads, total, err := store.List(ctx, lead.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	items := make([]LeadSummary, 0, len(leads))
	for _, l := range leads {
		items = append(items, Summarize(l))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}
