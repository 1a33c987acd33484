package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/metrics"
	"github.com/tidwall/gjson"
)

// ChatReply is the oracle's next conversational turn.
type ChatReply struct {
	Text string

	// Qualified reports that the oracle considers the lead fully qualified.
	Qualified bool

	// Structured is true when Qualified came from the JSON contract rather
	// than the sentinel fallback.
	Structured bool
}

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// Instructions is the persona and goal of the conversation.
	Instructions string

	// Sentinel is the fallback completion marker for plain-text replies.
	Sentinel string

	Timeout             time.Duration
	MaxTranscriptTokens int
	Recorder            metrics.Recorder
}

// Responder continues a conversation with a lead.
type Responder struct {
	c       Completer
	cfg     ResponderConfig
	trimmer *Trimmer
}

// NewResponder returns a Responder backed by c.
func NewResponder(c Completer, cfg ResponderConfig) (*Responder, error) {
	trimmer, err := NewTrimmer()
	if err != nil {
		return nil, err
	}
	return &Responder{c: c, cfg: cfg, trimmer: trimmer}, nil
}

// Provider names the backend.
func (r *Responder) Provider() string { return r.c.Provider() }

// Respond sends the (token-trimmed) transcript and parses the reply.
// The last turn in transcript must be the lead's latest message.
func (r *Responder) Respond(ctx context.Context, transcript []lead.Turn) (ChatReply, error) {
	turns := r.trimmer.Trim(transcript, r.cfg.MaxTranscriptTokens)
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, Message{Role: t.Role, Text: t.Text})
	}

	text, err := call(ctx, r.c, r.cfg.Recorder, "chat", r.cfg.Timeout, Request{
		System:    r.systemPrompt(),
		Messages:  msgs,
		JSON:      true,
		MaxTokens: 300,
	})
	if err != nil {
		return ChatReply{}, errors.NewOracleFailure(r.c.Provider(), err)
	}

	reply := ParseChatReply(text, r.cfg.Sentinel)
	if reply.Text == "" && !reply.Qualified {
		return ChatReply{}, errors.NewOracleFailure(r.c.Provider(), fmt.Errorf("empty reply"))
	}
	return reply, nil
}

func (r *Responder) systemPrompt() string {
	return r.cfg.Instructions + "\n\n" +
		`Respond with a single JSON object: {"reply": "<the SMS text to send>", "qualified": <true|false>}. ` +
		`Set "qualified" to true only once you know the ZIP code, project type, timeline and budget.` +
		sentinelHint(r.cfg.Sentinel)
}

func sentinelHint(sentinel string) string {
	if sentinel == "" {
		return ""
	}
	return fmt.Sprintf(" If you cannot produce JSON, end your message with %s once the lead is qualified.", sentinel)
}

// ParseChatReply interprets a conversational oracle reply. A JSON object with
// a boolean "qualified" field is authoritative. Otherwise the reply is treated
// as plain text and the sentinel (case-insensitive) marks completion. The
// sentinel is always removed from the text sent to the lead.
func ParseChatReply(text, sentinel string) ChatReply {
	if obj, err := extractObject(text); err == nil {
		if r := gjson.Get(obj, "reply"); r.Type == gjson.String {
			reply := ChatReply{Text: stripSentinel(r.Str, sentinel)}
			switch q := gjson.Get(obj, "qualified"); q.Type {
			case gjson.True, gjson.False:
				reply.Qualified = q.Bool()
				reply.Structured = true
			default:
				reply.Qualified = containsSentinel(r.Str, sentinel)
			}
			return reply
		}
	}

	return ChatReply{
		Text:      stripSentinel(text, sentinel),
		Qualified: containsSentinel(text, sentinel),
	}
}

func containsSentinel(text, sentinel string) bool {
	if sentinel == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(sentinel))
}

func stripSentinel(text, sentinel string) string {
	if sentinel != "" {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(sentinel))
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
