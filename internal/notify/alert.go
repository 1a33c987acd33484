package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/siftly/siftly/internal/lead"
)

// TimestampLayout formats QualifiedAt in the dashboard payload.
const TimestampLayout = "01/02/2006 15:04"

const unknown = "unknown"

// ComposeAlert renders the contractor alert for a HOT lead. The text depends
// only on the lead record.
func ComposeAlert(l *lead.Lead) string {
	zip := orUnknown(lead.Deref(l.ZipCode))
	return fmt.Sprintf(
		"🚨 URGENT HOT LEAD (%d/10) 🚨\n"+
			"\n"+
			"CLIENT: %s\n"+
			"PROJECT ZIP: %s\n"+
			"SCOPE: %s\n"+
			"RATING: IMMEDIATE ACTION REQUIRED\n"+
			"\n"+
			"ACTION: CALL NOW and reference Project %s.",
		lead.DerefInt(l.QualScore), l.PhoneNumber, zip, orUnknown(lead.Deref(l.ProjectType)), zip,
	)
}

// DashboardPayload is the fixed schema posted to the dashboard sink.
type DashboardPayload struct {
	Timestamp   string `json:"timestamp"`
	ProjectType string `json:"project_type"`
	Budget      string `json:"budget"`
	Location    string `json:"location"`
	Status      string `json:"status"`
}

// NewDashboardPayload builds the dashboard summary for l. The timestamp is
// QualifiedAt (UpdatedAt when missing) rendered in loc.
func NewDashboardPayload(l *lead.Lead, loc *time.Location) DashboardPayload {
	at := l.UpdatedAt
	if l.QualifiedAt != nil {
		at = *l.QualifiedAt
	}
	if loc == nil {
		loc = time.UTC
	}
	status := string(l.Classification)
	if status == "" {
		status = string(l.Status)
	}
	return DashboardPayload{
		Timestamp:   time.Unix(at, 0).In(loc).Format(TimestampLayout),
		ProjectType: lead.Deref(l.ProjectType),
		Budget:      lead.Deref(l.TimelineBudget),
		Location:    lead.Deref(l.ZipCode),
		Status:      status,
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
