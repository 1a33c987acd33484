// Package ops implements the admin operations shared by the CLI, the MCP
// server and the web pages: list, fetch, stats, export and dry-run scoring.
package ops

import (
	"strings"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// LeadSummary is a lead without its transcript.
type LeadSummary struct {
	ID             string              `json:"id"`
	PhoneNumber    string              `json:"phone_number"`
	Status         lead.Status         `json:"status"`
	Classification lead.Classification `json:"classification,omitempty"`
	QualScore      *int                `json:"qual_score,omitempty"`
	ZipCode        string              `json:"zip_code,omitempty"`
	ProjectType    string              `json:"project_type,omitempty"`
	TimelineBudget string              `json:"timeline_budget,omitempty"`
	Turns          int                 `json:"turns"`
	CreatedAt      int64               `json:"created_at"`
	UpdatedAt      int64               `json:"updated_at"`
	QualifiedAt    *int64              `json:"qualified_at,omitempty"`
}

// Summarize builds the summary view of l.
func Summarize(l *lead.Lead) LeadSummary {
	return LeadSummary{
		ID:             l.ID,
		PhoneNumber:    l.PhoneNumber,
		Status:         l.Status,
		Classification: l.Classification,
		QualScore:      l.QualScore,
		ZipCode:        lead.Deref(l.ZipCode),
		ProjectType:    lead.Deref(l.ProjectType),
		TimelineBudget: lead.Deref(l.TimelineBudget),
		Turns:          len(l.Transcript),
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
		QualifiedAt:    l.QualifiedAt,
	}
}

// ParseStatus validates an optional status filter. Matching is case-insensitive.
func ParseStatus(s string) (lead.Status, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	status := lead.Status(s)
	if !status.Valid() {
		return "", errors.NewInvalidRequest("unknown status: " + s)
	}
	return status, nil
}

// ValidatePhone normalizes a phone number used to address a lead.
func ValidatePhone(phone string) (string, error) {
	phone = lead.NormalizePhone(phone)
	if phone == "" {
		return "", errors.NewInvalidRequest("phone_number is required")
	}
	return phone, nil
}
