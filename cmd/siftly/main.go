package main

import (
	"fmt"
	"log"
	"os"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/db"
	"github.com/siftly/siftly/internal/mcp"
	"github.com/siftly/siftly/internal/metrics"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true,
	"list": true, "show": true, "export": true, "stats": true, "score": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion()
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _  __ _   _
   ___(_)/ _| |_| |_   _
  / __| | |_| __| | | | |
  \__ \ |  _| |_| | |_| |
  |___/_|_|  \__|_|\__, |
                   |___/

  Inbound SMS lead qualification

  Usage: siftly serve            start the webhook
         siftly <command> [options]
         siftly --help

  MCP server mode requires piped input.`)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("siftly: ")

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, config.DefaultConfig())
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	store := db.NewStore(database)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(store, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'siftly --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(store, cfg, newEngine(cfg, metrics.Nop()), Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}
