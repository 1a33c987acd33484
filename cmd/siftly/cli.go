package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/mcp"
	"github.com/siftly/siftly/internal/memstore"
	"github.com/siftly/siftly/internal/metrics"
	"github.com/siftly/siftly/internal/ops"
	"github.com/siftly/siftly/internal/web"
)

// stdout is where command output is written. Tests swap it.
var stdout io.Writer = os.Stdout

// newCLIApp creates the CLI application with all commands.
func newCLIApp(store lead.Repository, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "siftly",
		Usage:   "Inbound SMS lead qualification for contractors",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(store, cfg),
			mcpCmd(store, cfg),
			listCmd(store),
			showCmd(store),
			exportCmd(store, cfg),
			statsCmd(store),
			scoreCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(store lead.Repository, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the SMS webhook and admin pages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
			&cli.BoolFlag{Name: "memory", Usage: "Keep leads in process memory instead of SQLite"},
		},
		Action: func(c *cli.Context) error {
			if err := cfg.Validate(); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			repo := store
			if c.Bool("memory") {
				repo = memstore.New()
			}

			svc, err := newServices(cfg, repo)
			if err != nil {
				return outputError(err)
			}

			bind := cfg.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			srv := web.NewServer(web.Deps{
				Store:   repo,
				Router:  svc.router,
				Metrics: svc.recorder.Handler(),
				Version: Version,
			}, bind, port)

			return web.Run(srv, svc.notifier.Wait)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(store lead.Repository, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the lead admin tools over MCP (stdio)",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
				fmt.Fprintf(os.Stderr, "warning: unknown disabled_tools ignored: %v\n", unknown)
			}
			return mcp.Run(store, cfg, newEngine(cfg, metrics.Nop()), Version)
		},
	}
}

// listCmd creates the list command.
func listCmd(store lead.Repository) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List leads, most recently updated first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status (e.g. HOT)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, store, ops.ListInput{
				Status: c.String("status"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(store lead.Repository) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one lead by phone number",
		ArgsUsage: "<phone>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-transcript", Usage: "Exclude the transcript from output"},
		},
		Action: func(c *cli.Context) error {
			input := ops.FetchInput{Phone: c.Args().First()}
			if c.Bool("no-transcript") {
				include := false
				input.IncludeTranscript = &include
			}

			output, err := ops.Fetch(c.Context, store, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(store lead.Repository, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export leads to a CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file (default: ~/.siftly/exports/leads_export_<timestamp>.csv)"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Only export leads in this status"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, store, cfg, ops.ExportInput{
				Path:   c.String("path"),
				Status: c.String("status"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(store lead.Repository) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Count leads per status",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, store)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(output)
			}

			printStats(stdout, output)
			return nil
		},
	}
}

// scoreCmd creates the score command.
func scoreCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Dry-run qualification scoring on a set of answers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "zip", Usage: "ZIP code answer"},
			&cli.StringFlag{Name: "project", Usage: "Project type answer"},
			&cli.StringFlag{Name: "timeline", Usage: "Timeline and budget answer"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Score(c.Context, newEngine(cfg, metrics.Nop()), ops.ScoreInput{
				ZipCode:        c.String("zip"),
				ProjectType:    c.String("project"),
				TimelineBudget: c.String("timeline"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// Helper functions

// printStats writes a human-readable status table.
func printStats(w io.Writer, s *ops.StatsOutput) {
	statuses := make([]string, 0, len(s.ByStatus))
	for status := range s.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	for _, status := range statuses {
		fmt.Fprintf(w, "%-26s %8s\n", status, humanize.Comma(int64(s.ByStatus[lead.Status(status)])))
	}
	fmt.Fprintf(w, "%-26s %8s\n", "in progress", humanize.Comma(int64(s.InProgress)))
	fmt.Fprintf(w, "%-26s %8s\n", "classified", humanize.Comma(int64(s.Classified)))
	fmt.Fprintf(w, "%-26s %8s\n", "total", humanize.Comma(int64(s.Total)))
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SiftlyError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
