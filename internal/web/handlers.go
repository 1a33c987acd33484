package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/siftly/siftly/internal/conversation"
	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/ops"
)

// MessageHandler handles one inbound message. *conversation.Router implements it.
type MessageHandler interface {
	Handle(ctx context.Context, in conversation.Inbound) conversation.Reply
}

// Handlers contains HTTP route handlers for the webhook and the admin pages.
type Handlers struct {
	store    lead.Repository
	router   MessageHandler
	renderer *Renderer
}

// listStatuses are offered in the status filter.
var listStatuses = []lead.Status{
	lead.StatusAwaitingZip,
	lead.StatusAwaitingProjectType,
	lead.StatusAwaitingTimelineBudget,
	lead.StatusActive,
	lead.StatusHot,
	lead.StatusWarm,
	lead.StatusCold,
	lead.StatusQualified,
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CountByStatus(r.Context()); err != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": h.renderer.version})
}

// HandleList handles GET /leads: leads ordered by most recent activity.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	result, err := ops.List(r.Context(), h.store, ops.ListInput{
		Status: status,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	stats, err := ops.Stats(r.Context(), h.store)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	nav := "leads"
	if normalized, _ := ops.ParseStatus(status); normalized == lead.StatusHot {
		nav = "hot"
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Leads",
			Version: h.renderer.version,
			Nav:     nav,
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Stats:      stats,
		Status:     status,
		Statuses:   listStatuses,
	})
}

// HandleDetail handles GET /leads/{phone}: one lead with its transcript.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	phone := r.PathValue("phone")
	if phone == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("phone number is required"))
		return
	}

	l, err := ops.Fetch(r.Context(), h.store, ops.FetchInput{Phone: phone})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, l)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   l.PhoneNumber,
			Version: h.renderer.version,
			Nav:     "leads",
		},
		Lead:  l,
		Turns: renderTurns(l.Transcript),
	})
}

// HandleExportCSV handles GET /leads.csv: every lead (optionally filtered by status) as CSV.
func (h *Handlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	status, err := ops.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	filename := fmt.Sprintf("leads_export_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	// Headers are already sent once rows stream, so late errors can only be logged.
	if _, err := ops.WriteCSV(r.Context(), w, h.store, lead.ListFilter{Status: status}); err != nil {
		logRequestError(r, err)
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
