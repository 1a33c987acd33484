package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/siftly/siftly/internal/lead"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to, body string
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{to, body})
	return f.err
}

func (f *fakeSender) sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.msgs...)
}

type fakeDashboard struct {
	mu       sync.Mutex
	payloads []DashboardPayload
}

func (f *fakeDashboard) Post(_ context.Context, p DashboardPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

func hotLead() *lead.Lead {
	score := 10
	at := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC).Unix()
	return &lead.Lead{
		PhoneNumber:    "+15551234567",
		Status:         lead.StatusHot,
		ZipCode:        lead.StringPtr("ZIP 12345"),
		ProjectType:    lead.StringPtr("Full Replacement"),
		TimelineBudget: lead.StringPtr("Immediate, $12k budget"),
		QualScore:      &score,
		Classification: lead.ClassHot,
		QualifiedAt:    &at,
	}
}

func TestComposeAlert(t *testing.T) {
	got := ComposeAlert(hotLead())

	want := "🚨 URGENT HOT LEAD (10/10) 🚨\n\n" +
		"CLIENT: +15551234567\n" +
		"PROJECT ZIP: ZIP 12345\n" +
		"SCOPE: Full Replacement\n" +
		"RATING: IMMEDIATE ACTION REQUIRED\n\n" +
		"ACTION: CALL NOW and reference Project ZIP 12345."
	require.Equal(t, want, got)
}

func TestComposeAlert_ConversationalLeadHasNoAnswers(t *testing.T) {
	l := hotLead()
	l.ZipCode, l.ProjectType = nil, nil
	got := ComposeAlert(l)
	require.Contains(t, got, "PROJECT ZIP: unknown")
	require.Contains(t, got, "SCOPE: unknown")
}

func TestNewDashboardPayload(t *testing.T) {
	p := NewDashboardPayload(hotLead(), time.UTC)
	require.Equal(t, DashboardPayload{
		Timestamp:   "03/09/2024 14:05",
		ProjectType: "Full Replacement",
		Budget:      "Immediate, $12k budget",
		Location:    "ZIP 12345",
		Status:      "HOT",
	}, p)
}

func TestNotifier_HotLeadDispatchesBothChannels(t *testing.T) {
	sender := &fakeSender{}
	dash := &fakeDashboard{}
	n := New(Options{Sender: sender, ContractorPhone: "+15550001111", Dashboard: dash})

	n.LeadQualified(context.Background(), hotLead())
	n.Wait()

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	require.Equal(t, "+15550001111", msgs[0].to)
	require.Contains(t, msgs[0].body, "12345")
	require.Contains(t, msgs[0].body, "10/10")
	require.Len(t, dash.payloads, 1)
}

func TestNotifier_IgnoresNonHotLeads(t *testing.T) {
	sender := &fakeSender{}
	n := New(Options{Sender: sender, ContractorPhone: "+15550001111"})

	l := hotLead()
	l.Classification = lead.ClassWarm
	n.LeadQualified(context.Background(), l)
	n.LeadQualified(context.Background(), nil)
	n.Wait()

	require.Empty(t, sender.sent())
}

func TestNotifier_SurvivesCancelledRequest(t *testing.T) {
	sender := &fakeSender{}
	n := New(Options{Sender: sender, ContractorPhone: "+15550001111"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.LeadQualified(ctx, hotLead())
	n.Wait()

	require.Len(t, sender.sent(), 1)
}

func TestNotifier_FailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: io.ErrUnexpectedEOF}
	n := New(Options{Sender: sender, ContractorPhone: "+15550001111"})

	n.LeadQualified(context.Background(), hotLead())
	n.Wait()

	require.Len(t, sender.sent(), 1)
}

func TestDashboardClient_Post(t *testing.T) {
	var (
		gotMethod, gotType string
		gotBody            DashboardPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewDashboardClient(srv.URL, WithHTTPClient(srv.Client()))
	want := NewDashboardPayload(hotLead(), time.UTC)
	require.NoError(t, c.Post(context.Background(), want))

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "application/json", gotType)
	require.Equal(t, want, gotBody)
}

func TestDashboardClient_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	err := NewDashboardClient(srv.URL).Post(context.Background(), DashboardPayload{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
	require.Less(t, len(err.Error()), 2200)
}

func TestDashboardClient_RequiresURL(t *testing.T) {
	require.Error(t, NewDashboardClient("").Post(context.Background(), DashboardPayload{}))
}
