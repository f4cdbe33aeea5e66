package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"github.com/backlane/agentstream/agent"
	"github.com/backlane/agentstream/anthropic"
	"github.com/backlane/agentstream/config"
	"github.com/backlane/agentstream/conversations"
	applogger "github.com/backlane/agentstream/logger"
	"github.com/backlane/agentstream/mcp"
	"github.com/backlane/agentstream/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.DefaultConfigPath(), "Path to config file")
		logFile    = flag.String("logfile", "", "Path to log file. Overrides the configured path")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		threadID   = flag.String("thread", "default", "Conversation thread to append to")
		system     = flag.String("system", "", "System prompt. Overrides the configured prompt")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	prompt := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("usage: agentstream [flags] <prompt>")
	}

	appConfig, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.API.APIKey == "" {
		return fmt.Errorf("missing api.api_key in config file (or ANTHROPIC_API_KEY)")
	}

	logPath := appConfig.LogFile
	if *logFile != "" {
		logPath = *logFile
	}
	if *pretty {
		logPath = ""
	}
	logger, err := applogger.InitWithOptions(logPath, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info().
		Str("model", appConfig.API.Model).
		Str("thread", *threadID).
		Msg("agentstream starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------------------
	// 1. Open SQLite (optional)
	// ---------------------------

	var store *conversations.Store
	if appConfig.Database.Path != "" {
		logger.Info().Str("path", appConfig.Database.Path).Msg("Initializing conversation store")
		db, err := sql.Open("sqlite3", appConfig.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck // No remedy for db close errors

		if err := migrations.RunMigrations(db, appConfig.Database.MigrationsPath, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		store = conversations.NewStore(db)
	}

	// ---------------------------
	// 2. Connect capability provider (optional)
	// ---------------------------

	var provider *mcp.Manager
	if appConfig.MCP.Command != "" {
		provider = mcp.NewManager(logger)
		if err := provider.Connect(ctx, appConfig.MCP.Command, appConfig.MCP.Args, appConfig.MCP.Env); err != nil {
			return fmt.Errorf("failed to connect MCP server: %w", err)
		}
		defer func() { _ = provider.Disconnect() }()
	}

	// ---------------------------
	// 3. Run one turn
	// ---------------------------

	builder := anthropic.NewRequestBuilder(appConfig.API.APIKey, appConfig.API.Model)
	client := anthropic.NewClient(builder, appConfig.API.BaseURL, nil, logger)

	var persister agent.MessagePersister
	if store != nil {
		persister = store
	}
	runner := agent.New(client, provider, persister, logger)

	opts := agent.TurnOptions{
		MaxTokens: appConfig.API.MaxTokens,
		ThreadID:  *threadID,
	}
	if appConfig.API.ThinkingBudget > 0 {
		budget := appConfig.API.ThinkingBudget
		opts.ThinkingBudget = &budget
	}
	if store != nil {
		history, err := store.History(ctx, *threadID)
		if err != nil {
			return fmt.Errorf("failed to load thread history: %w", err)
		}
		opts.History = history
	}

	systemPrompt := appConfig.System
	if *system != "" {
		systemPrompt = *system
	}

	events, err := runner.Stream(ctx, systemPrompt, prompt, opts)
	if err != nil {
		return fmt.Errorf("failed to start turn: %w", err)
	}

	return printEvents(events)
}

// printEvents renders the event stream to stdout: answer tokens inline,
// everything else as annotated lines.
func printEvents(events <-chan agent.Event) error {
	var failed error
	inAnswer := false

	endAnswer := func() {
		if inAnswer {
			fmt.Println()
			inAnswer = false
		}
	}

	for ev := range events {
		switch ev.Type {
		case agent.EventAnswer:
			fmt.Print(ev.Content)
			inAnswer = true
		case agent.EventReasoning:
			endAnswer()
			fmt.Printf("[thinking] %s\n", ev.Content)
		case agent.EventToolUse:
			endAnswer()
			fmt.Printf("[tool] %s\n", ev.Content)
		case agent.EventToolResult:
			endAnswer()
			fmt.Printf("[result] %s\n", ev.Content)
		case agent.EventError:
			endAnswer()
			failed = fmt.Errorf("turn failed: %s", ev.Content)
		case agent.EventDone:
			endAnswer()
		}
	}
	return failed
}
