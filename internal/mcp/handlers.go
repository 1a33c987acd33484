package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/ops"
	"github.com/siftly/siftly/internal/qualify"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store  lead.Repository
	cfg    *config.Config
	engine *qualify.Engine
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store lead.Repository, cfg *config.Config, engine *qualify.Engine) *Handlers {
	return &Handlers{store: store, cfg: cfg, engine: engine}
}

// FetchRequest represents the arguments for lead_fetch.
type FetchRequest struct {
	PhoneNumber       string `json:"phone_number"`
	IncludeTranscript *bool  `json:"include_transcript,omitempty"`
}

// ListRequest represents the arguments for lead_list.
type ListRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ExportRequest represents the arguments for lead_export.
type ExportRequest struct {
	Path   string `json:"path,omitempty"`
	Status string `json:"status,omitempty"`
}

// ScoreRequest represents the arguments for lead_score.
type ScoreRequest struct {
	ZipCode        string `json:"zip_code,omitempty"`
	ProjectType    string `json:"project_type,omitempty"`
	TimelineBudget string `json:"timeline_budget,omitempty"`
}

// HandleFetch handles the lead_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.store, ops.FetchInput{
		Phone:             input.PhoneNumber,
		IncludeTranscript: input.IncludeTranscript,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the lead_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.store, ops.ListInput{
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStats handles the lead_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Stats(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the lead_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.store, h.cfg, ops.ExportInput{
		Path:   input.Path,
		Status: input.Status,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleScore handles the lead_score tool call.
func (h *Handlers) HandleScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Score(ctx, h.engine, ops.ScoreInput{
		ZipCode:        input.ZipCode,
		ProjectType:    input.ProjectType,
		TimelineBudget: input.TimelineBudget,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.SiftlyError
	if stderrors.As(err, &sErr) {
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": sErr.Message,
			"status":  sErr.Status,
		}
		if sErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
