package lead

import (
	"fmt"
	"strings"

	"github.com/siftly/siftly/internal/errors"
)

// MinScore and MaxScore bound the qualification score.
const (
	MinScore = 0
	MaxScore = 10
)

// Patch is a typed partial update of a lead. Nil fields are left unchanged.
type Patch struct {
	ZipCode        *string
	ProjectType    *string
	TimelineBudget *string
	Status         *Status
	QualScore      *int
	Classification *Classification

	// AppendTurns are appended to the transcript in order.
	AppendTurns []Turn
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.ZipCode == nil && p.ProjectType == nil && p.TimelineBudget == nil &&
		p.Status == nil && p.QualScore == nil && p.Classification == nil &&
		len(p.AppendTurns) == 0
}

// Qualifies reports whether the patch carries a classification event.
func (p Patch) Qualifies() bool {
	return p.QualScore != nil && p.Classification != nil
}

// Validate checks p against the current state of the lead it will be applied to.
func (p Patch) Validate(current *Lead) error {
	phone := current.PhoneNumber

	if current.Status.Terminal() {
		if p.ZipCode != nil || p.ProjectType != nil || p.TimelineBudget != nil ||
			p.QualScore != nil || p.Classification != nil || len(p.AppendTurns) > 0 {
			return errors.NewInvalidPatch(phone, "lead is already classified")
		}
		if p.Status != nil && *p.Status != current.Status {
			return errors.NewInvalidPatch(phone, "lead is already classified")
		}
		return nil
	}

	for name, v := range map[string]*string{
		"zip_code":        p.ZipCode,
		"project_type":    p.ProjectType,
		"timeline_budget": p.TimelineBudget,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return errors.NewInvalidPatch(phone, name+" must not be empty")
		}
	}

	next := current.Status
	if p.Status != nil {
		if !current.Status.CanAdvanceTo(*p.Status) {
			return errors.NewInvalidPatch(phone, fmt.Sprintf("cannot move from %s to %s", current.Status, *p.Status))
		}
		next = *p.Status
	}

	// Score, classification and terminal status travel together.
	if (p.QualScore == nil) != (p.Classification == nil) {
		return errors.NewInvalidPatch(phone, "qual_score and classification must be set together")
	}
	if p.Qualifies() != next.Terminal() {
		return errors.NewInvalidPatch(phone, "qual_score must be set exactly when the lead is classified")
	}
	if p.QualScore != nil && (*p.QualScore < MinScore || *p.QualScore > MaxScore) {
		return errors.NewInvalidPatch(phone, fmt.Sprintf("qual_score %d out of range [%d, %d]", *p.QualScore, MinScore, MaxScore))
	}
	if p.Classification != nil {
		if !p.Classification.Valid() {
			return errors.NewInvalidPatch(phone, fmt.Sprintf("unknown classification %q", *p.Classification))
		}
		if !next.Conversational() && next != p.Classification.Status() {
			return errors.NewInvalidPatch(phone, "scripted status must equal classification")
		}
	}

	for _, turn := range p.AppendTurns {
		if turn.Role != RoleUser && turn.Role != RoleAssistant {
			return errors.NewInvalidPatch(phone, fmt.Sprintf("unknown transcript role %q", turn.Role))
		}
	}

	return nil
}

// Apply returns a copy of current with p applied. now stamps UpdatedAt,
// QualifiedAt on classification, and transcript turns without a timestamp.
// Apply does not validate; call Validate first.
func (p Patch) Apply(current *Lead, now int64) *Lead {
	l := current.Clone()

	if p.ZipCode != nil {
		l.ZipCode = cloneString(p.ZipCode)
	}
	if p.ProjectType != nil {
		l.ProjectType = cloneString(p.ProjectType)
	}
	if p.TimelineBudget != nil {
		l.TimelineBudget = cloneString(p.TimelineBudget)
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Qualifies() {
		score := *p.QualScore
		l.QualScore = &score
		l.Classification = *p.Classification
		qualifiedAt := now
		l.QualifiedAt = &qualifiedAt
	}
	for _, turn := range p.AppendTurns {
		if turn.At == 0 {
			turn.At = now
		}
		l.Transcript = append(l.Transcript, turn)
	}

	l.Version++
	l.UpdatedAt = now
	return l
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// StatusPtr returns a pointer to s.
func StatusPtr(s Status) *Status { return &s }
