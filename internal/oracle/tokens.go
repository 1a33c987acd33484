package oracle

import (
	"fmt"

	"github.com/siftly/siftly/internal/lead"
	"github.com/tiktoken-go/tokenizer"
)

// perTurnOverhead approximates the role and separator tokens chat APIs add per message.
const perTurnOverhead = 4

// Trimmer keeps transcripts within a token budget.
type Trimmer struct {
	codec tokenizer.Codec
}

// NewTrimmer creates a trimmer using the GPT-4 encoding, which is close
// enough for both supported providers.
func NewTrimmer() (*Trimmer, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &Trimmer{codec: codec}, nil
}

// Count returns the number of tokens in text.
func (t *Trimmer) Count(text string) int {
	if t == nil || t.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}
	n, err := t.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Trim drops the oldest turns until the rest fit in maxTokens. The newest
// turn is always kept, and the result never starts with an assistant turn.
// maxTokens <= 0 disables trimming.
func (t *Trimmer) Trim(turns []lead.Turn, maxTokens int) []lead.Turn {
	if maxTokens <= 0 || len(turns) == 0 {
		return turns
	}

	start := len(turns) - 1
	used := t.Count(turns[start].Text) + perTurnOverhead
	for start > 0 {
		cost := t.Count(turns[start-1].Text) + perTurnOverhead
		if used+cost > maxTokens {
			break
		}
		used += cost
		start--
	}

	for start < len(turns)-1 && turns[start].Role != lead.RoleUser {
		start++
	}
	return turns[start:]
}
