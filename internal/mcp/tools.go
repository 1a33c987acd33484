package mcp

import "github.com/mark3labs/mcp-go/mcp"

var fetchToolDef = mcp.NewTool("lead_fetch",
	mcp.WithDescription("Fetch one lead by phone number, including its collected answers, classification and conversation transcript."),
	mcp.WithString("phone_number",
		mcp.Required(),
		mcp.Description("E.164 phone number of the lead, e.g. +15551234567"),
	),
	mcp.WithBoolean("include_transcript",
		mcp.Description("Include the conversation transcript (default: true)"),
	),
)

var listToolDef = mcp.NewTool("lead_list",
	mcp.WithDescription("List leads, most recently updated first. Transcripts are omitted; use lead_fetch for the full record."),
	mcp.WithString("status",
		mcp.Description("Filter by status: NEW, AWAITING_ZIP, AWAITING_PROJECT_TYPE, AWAITING_TIMELINE_BUDGET, HOT, WARM, COLD, ACTIVE, QUALIFIED"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Max results (default: 20, max: 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of leads to skip (default: 0)"),
	),
)

var statsToolDef = mcp.NewTool("lead_stats",
	mcp.WithDescription("Count leads per status, with totals for in-progress and classified leads."),
)

var exportToolDef = mcp.NewTool("lead_export",
	mcp.WithDescription("Export leads to a CSV file. Defaults to ~/.siftly/exports/leads_export_<timestamp>.csv."),
	mcp.WithString("path",
		mcp.Description("Destination .csv path inside the allowed export directories"),
	),
	mcp.WithString("status",
		mcp.Description("Only export leads in this status"),
	),
)

var scoreToolDef = mcp.NewTool("lead_score",
	mcp.WithDescription("Dry-run the qualification scoring on a set of answers without touching any stored lead."),
	mcp.WithString("zip_code",
		mcp.Description("Answer to the ZIP code question"),
	),
	mcp.WithString("project_type",
		mcp.Description("Answer to the project type question, e.g. Full Replacement"),
	),
	mcp.WithString("timeline_budget",
		mcp.Description("Answer to the timeline and budget question, e.g. Immediate, $12k budget"),
	),
)
