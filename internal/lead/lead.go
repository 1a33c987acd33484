// Package lead defines the lead record tracked through the qualification
// funnel, the typed patch used to change it, and the store contract.
package lead

import "strings"

// Status is the position of a lead in the qualification funnel.
type Status string

// Scripted path statuses.
const (
	StatusNew                    Status = "NEW"
	StatusAwaitingZip            Status = "AWAITING_ZIP"
	StatusAwaitingProjectType    Status = "AWAITING_PROJECT_TYPE"
	StatusAwaitingTimelineBudget Status = "AWAITING_TIMELINE_BUDGET"
	StatusHot                    Status = "HOT"
	StatusWarm                   Status = "WARM"
	StatusCold                   Status = "COLD"
)

// Conversational path statuses.
const (
	StatusActive    Status = "ACTIVE"
	StatusQualified Status = "QUALIFIED"
)

// rank orders statuses so that transitions can be checked for monotonicity.
// Both paths share rank 0 for NEW; terminal statuses share the highest rank.
var rank = map[Status]int{
	StatusNew:                    0,
	StatusAwaitingZip:            1,
	StatusAwaitingProjectType:    2,
	StatusAwaitingTimelineBudget: 3,
	StatusActive:                 1,
	StatusHot:                    4,
	StatusWarm:                   4,
	StatusCold:                   4,
	StatusQualified:              4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// Rank returns the funnel position of s, or -1 for unknown statuses.
func (s Status) Rank() int {
	r, ok := rank[s]
	if !ok {
		return -1
	}
	return r
}

// Terminal reports whether the lead has been classified.
func (s Status) Terminal() bool {
	return s.Rank() == rank[StatusQualified]
}

// Conversational reports whether s belongs to the oracle-driven path.
func (s Status) Conversational() bool {
	return s == StatusActive || s == StatusQualified
}

// CanAdvanceTo reports whether moving from s to next keeps the funnel monotonic.
// Staying put is allowed; terminal statuses never change; the two paths never mix.
func (s Status) CanAdvanceTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if s != StatusNew && s.Conversational() != next.Conversational() {
		return false
	}
	if s == StatusNew && next.Terminal() {
		return false
	}
	return next.Rank() > s.Rank()
}

// Classification is the HOT/WARM/COLD bucket derived from a qualification score.
type Classification string

const (
	ClassHot  Classification = "HOT"
	ClassWarm Classification = "WARM"
	ClassCold Classification = "COLD"
)

// Valid reports whether c is one of the three buckets.
func (c Classification) Valid() bool {
	return c == ClassHot || c == ClassWarm || c == ClassCold
}

// Status returns the scripted-path terminal status for c.
func (c Classification) Status() Status {
	return Status(c)
}

// Role identifies who authored a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

// Lead is a prospective customer tracked by phone number.
type Lead struct {
	// ID is a ULID assigned on first contact
	ID string `json:"id"`

	// PhoneNumber is the sender identifier; unique and immutable
	PhoneNumber string `json:"phone_number"`

	Status Status `json:"status"`

	ZipCode        *string `json:"zip_code,omitempty"`
	ProjectType    *string `json:"project_type,omitempty"`
	TimelineBudget *string `json:"timeline_budget,omitempty"`

	// QualScore is set together with Classification at qualification time
	QualScore      *int           `json:"qual_score,omitempty"`
	Classification Classification `json:"classification,omitempty"`

	// Transcript is append-only
	Transcript []Turn `json:"transcript,omitempty"`

	// Version increments on every committed write
	Version int64 `json:"version"`

	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	QualifiedAt *int64 `json:"qualified_at,omitempty"`
}

// Clone returns a deep copy of l.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	c.ZipCode = cloneString(l.ZipCode)
	c.ProjectType = cloneString(l.ProjectType)
	c.TimelineBudget = cloneString(l.TimelineBudget)
	if l.QualScore != nil {
		s := *l.QualScore
		c.QualScore = &s
	}
	if l.QualifiedAt != nil {
		q := *l.QualifiedAt
		c.QualifiedAt = &q
	}
	if l.Transcript != nil {
		c.Transcript = append([]Turn(nil), l.Transcript...)
	}
	return &c
}

// Deref returns the value of s, or "" when nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DerefInt returns the value of n, or 0 when nil.
func DerefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// NormalizePhone trims surrounding whitespace from a sender identifier.
// Numbers are otherwise stored exactly as the transport delivers them (E.164).
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
