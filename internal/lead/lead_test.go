package lead

import (
	"testing"

	"github.com/siftly/siftly/internal/errors"
)

func TestStatus_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusAwaitingZip, true},
		{StatusAwaitingZip, StatusAwaitingProjectType, true},
		{StatusAwaitingProjectType, StatusAwaitingTimelineBudget, true},
		{StatusAwaitingTimelineBudget, StatusHot, true},
		{StatusAwaitingTimelineBudget, StatusWarm, true},
		{StatusAwaitingTimelineBudget, StatusCold, true},
		{StatusAwaitingZip, StatusAwaitingZip, true},
		{StatusNew, StatusActive, true},
		{StatusActive, StatusQualified, true},

		{StatusAwaitingProjectType, StatusAwaitingZip, false},
		{StatusHot, StatusAwaitingZip, false},
		{StatusHot, StatusCold, false},
		{StatusCold, StatusNew, false},
		{StatusNew, StatusHot, false},
		{StatusActive, StatusHot, false},
		{StatusAwaitingZip, StatusQualified, false},
		{StatusQualified, StatusActive, false},
		{StatusAwaitingZip, Status("BOGUS"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
				t.Errorf("CanAdvanceTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range []Status{StatusHot, StatusWarm, StatusCold, StatusQualified} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusNew, StatusAwaitingZip, StatusAwaitingProjectType, StatusAwaitingTimelineBudget, StatusActive} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestPatch_Validate(t *testing.T) {
	score := func(n int) *int { return &n }
	class := func(c Classification) *Classification { return &c }

	tests := []struct {
		name    string
		current Lead
		patch   Patch
		wantErr bool
	}{
		{
			name:    "store zip and advance",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingZip},
			patch:   Patch{ZipCode: StringPtr("12345"), Status: StatusPtr(StatusAwaitingProjectType)},
		},
		{
			name:    "empty zip rejected",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingZip},
			patch:   Patch{ZipCode: StringPtr("   "), Status: StatusPtr(StatusAwaitingProjectType)},
			wantErr: true,
		},
		{
			name:    "backward transition rejected",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingTimelineBudget},
			patch:   Patch{Status: StatusPtr(StatusAwaitingZip)},
			wantErr: true,
		},
		{
			name:    "classification with score",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingTimelineBudget},
			patch:   Patch{Status: StatusPtr(StatusHot), QualScore: score(9), Classification: class(ClassHot)},
		},
		{
			name:    "terminal status without score",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingTimelineBudget},
			patch:   Patch{Status: StatusPtr(StatusHot)},
			wantErr: true,
		},
		{
			name:    "score without terminal status",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingTimelineBudget},
			patch:   Patch{QualScore: score(2), Classification: class(ClassCold)},
			wantErr: true,
		},
		{
			name:    "score without classification",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingTimelineBudget},
			patch:   Patch{Status: StatusPtr(StatusCold), QualScore: score(2)},
			wantErr: true,
		},
		{
			name:    "score out of range",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingTimelineBudget},
			patch:   Patch{Status: StatusPtr(StatusHot), QualScore: score(11), Classification: class(ClassHot)},
			wantErr: true,
		},
		{
			name:    "scripted status must match classification",
			current: Lead{PhoneNumber: "+1", Status: StatusAwaitingTimelineBudget},
			patch:   Patch{Status: StatusPtr(StatusWarm), QualScore: score(9), Classification: class(ClassHot)},
			wantErr: true,
		},
		{
			name:    "conversational qualification carries any classification",
			current: Lead{PhoneNumber: "+1", Status: StatusActive},
			patch:   Patch{Status: StatusPtr(StatusQualified), QualScore: score(5), Classification: class(ClassWarm)},
		},
		{
			name:    "classified lead is frozen",
			current: Lead{PhoneNumber: "+1", Status: StatusHot},
			patch:   Patch{ZipCode: StringPtr("99999")},
			wantErr: true,
		},
		{
			name:    "classified lead accepts empty patch",
			current: Lead{PhoneNumber: "+1", Status: StatusCold},
			patch:   Patch{},
		},
		{
			name:    "unknown role",
			current: Lead{PhoneNumber: "+1", Status: StatusActive},
			patch:   Patch{AppendTurns: []Turn{{Role: "system", Text: "hi"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate(&tt.current)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidPatch) {
				t.Errorf("error code = %v, want INVALID_PATCH", err)
			}
		})
	}
}

func TestPatch_Apply(t *testing.T) {
	current := &Lead{
		ID:          "01J",
		PhoneNumber: "+15551234567",
		Status:      StatusAwaitingTimelineBudget,
		ZipCode:     StringPtr("12345"),
		ProjectType: StringPtr("Full Replacement"),
		Version:     3,
		CreatedAt:   100,
		UpdatedAt:   200,
	}
	score := 8
	class := ClassHot

	patch := Patch{
		TimelineBudget: StringPtr("Immediate, $12k"),
		Status:         StatusPtr(StatusHot),
		QualScore:      &score,
		Classification: &class,
		AppendTurns:    []Turn{{Role: RoleUser, Text: "Immediate, $12k"}},
	}

	got := patch.Apply(current, 300)

	if got.Version != 4 {
		t.Errorf("Version = %d, want 4", got.Version)
	}
	if got.CreatedAt != 100 {
		t.Errorf("CreatedAt = %d, must not change", got.CreatedAt)
	}
	if got.UpdatedAt != 300 {
		t.Errorf("UpdatedAt = %d, want 300", got.UpdatedAt)
	}
	if got.QualifiedAt == nil || *got.QualifiedAt != 300 {
		t.Errorf("QualifiedAt = %v, want 300", got.QualifiedAt)
	}
	if got.Status != StatusHot || got.Classification != ClassHot || *got.QualScore != 8 {
		t.Errorf("classification not applied: %+v", got)
	}
	if len(got.Transcript) != 1 || got.Transcript[0].At != 300 {
		t.Errorf("Transcript = %+v, want one turn stamped at 300", got.Transcript)
	}

	// The input must be untouched.
	if current.Version != 3 || current.Status != StatusAwaitingTimelineBudget || current.QualScore != nil {
		t.Errorf("Apply mutated its input: %+v", current)
	}
}

func TestLead_CloneIsDeep(t *testing.T) {
	score := 4
	l := &Lead{
		ZipCode:    StringPtr("12345"),
		QualScore:  &score,
		Transcript: []Turn{{Role: RoleUser, Text: "hi"}},
	}
	c := l.Clone()
	*c.ZipCode = "99999"
	*c.QualScore = 9
	c.Transcript[0].Text = "changed"

	if *l.ZipCode != "12345" || *l.QualScore != 4 || l.Transcript[0].Text != "hi" {
		t.Errorf("Clone shares memory with its source: %+v", l)
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("  +15551234567\n"); got != "+15551234567" {
		t.Errorf("NormalizePhone() = %q", got)
	}
}
