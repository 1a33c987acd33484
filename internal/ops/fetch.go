package ops

import (
	"context"

	"github.com/siftly/siftly/internal/lead"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	Phone             string
	IncludeTranscript *bool // default: true (nil means default)
}

// Fetch retrieves one lead by phone number.
func Fetch(ctx context.Context, store lead.Store, input FetchInput) (*lead.Lead, error) {
	phone, err := ValidatePhone(input.Phone)
	if err != nil {
		return nil, err
	}

	l, err := store.Get(ctx, phone)
	if err != nil {
		return nil, err
	}

	if input.IncludeTranscript != nil && !*input.IncludeTranscript {
		l.Transcript = nil
	}
	return l, nil
}
