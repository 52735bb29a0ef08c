package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/HyphaGroup/gevulot/internal/backup"
	"github.com/HyphaGroup/gevulot/internal/bridge"
	"github.com/HyphaGroup/gevulot/internal/cleanup"
	"github.com/HyphaGroup/gevulot/internal/config"
	"github.com/HyphaGroup/gevulot/internal/conversation"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/mcp"
	"github.com/HyphaGroup/gevulot/internal/poll"
	"github.com/HyphaGroup/gevulot/internal/schedule"
	"github.com/HyphaGroup/gevulot/internal/session"
	"github.com/HyphaGroup/gevulot/internal/stream"
	"github.com/HyphaGroup/gevulot/internal/validation"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	// Check for subcommands before parsing flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "init":
			cmdInit(os.Args[2:])
			return
		case "ask":
			cmdAsk(os.Args[2:])
			return
		case "stream":
			cmdStream(os.Args[2:])
			return
		case "status":
			cmdStatus(os.Args[2:])
			return
		case "result":
			cmdResult(os.Args[2:])
			return
		case "cancel":
			cmdCancel(os.Args[2:])
			return
		case "history":
			cmdHistory(os.Args[2:])
			return
		case "schedule":
			cmdSchedule(os.Args[2:])
			return
		case "cleanup":
			cmdCleanup(os.Args[2:])
			return
		case "backup":
			cmdBackup(os.Args[2:])
			return
		case "config":
			cmdConfig(os.Args[2:])
			return
		case "--version", "-v":
			fmt.Printf("gevulot %s\n", Version)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		default:
			if !strings.HasPrefix(os.Args[1], "-") {
				fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
				printUsage()
				os.Exit(1)
			}
		}
	}

	// Default: run the server
	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`Gevulot %s - MCP bridge for a job-based agent orchestrator

Usage: gevulot [command] [options]

Commands:
  (default)    Start the MCP server (same as 'serve')
  serve        Start the MCP server
  ask          Submit a prompt and wait for the answer
  stream       Submit a prompt and print the answer as it arrives
  status       Show one job's status
  result       Fetch a completed job's result
  cancel       Cancel a running job
  history      Inspect the conversation history store
  schedule     Manage scheduled prompts
  cleanup      Prune aged history and report disk usage
  backup       Create, list, and restore data snapshots
  config       Show the resolved configuration
  init         Initialize the Gevulot directory structure

Common Options:
  --dir <path>   Config directory holding gevulot.jsonc

Config Precedence:
  1. --dir flag
  2. GEVULOT_HOME env var
  3. ./.gevulot (if initialized in current directory)
  4. ~/.gevulot (default)

Examples:
  gevulot init                           Set up ~/.gevulot
  gevulot serve                          Start the MCP server
  gevulot ask "summarize the overnight logs"
  gevulot stream "explain this stack trace"
  gevulot status job-1a2b3c4d            Check a job
  gevulot schedule list                  List scheduled prompts
`, Version)
}

// mustLoadConfig loads and validates gevulot.jsonc or exits
func mustLoadConfig(dir string) *config.LoadedConfig {
	if _, err := config.FindConfigPath(dir); err != nil {
		fmt.Fprintln(os.Stderr, "Gevulot not initialized. Run 'gevulot init' first.")
		fmt.Fprintf(os.Stderr, "(%v)\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAll(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newOrchestratorClient builds the outbound client for one-shot commands
func newOrchestratorClient(dir string) (*bridge.Client, *config.LoadedConfig) {
	cfg := mustLoadConfig(dir)

	token, _ := cfg.OrchestratorToken()
	client, err := bridge.NewClient(bridge.Options{
		BaseURL:        cfg.Orchestrator.BaseURL,
		Credentials:    bridge.Credentials{Token: token},
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return client, cfg
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	addrFlag := fs.String("addr", "", "Listen address (overrides config)")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*dirFlag)

	dataDir := cfg.DataDir()
	logDir := filepath.Join(dataDir, "logs")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Close() }()

	// Structured request-scoped logging next to the printf logger
	if err := logger.InitSlog(logDir, true); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.CloseSlog() }()

	logger.Println("🧿 Gevulot - Agent Orchestrator Bridge")
	logger.Println("   \"Every exchange remembered, every boundary negotiated...\"")
	logger.Println("")

	// Outbound credential for the orchestrator
	token, ok := cfg.OrchestratorToken()
	if !ok {
		logger.Println("⚠️  WARNING: No orchestrator credential configured")
		logger.Println("   Submissions will fail until you add credentials.tokens or set GEVULOT_TOKEN")
	}

	client, err := bridge.NewClient(bridge.Options{
		BaseURL:        cfg.Orchestrator.BaseURL,
		Credentials:    bridge.Credentials{Token: token},
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		logger.Fatalf("Failed to create orchestrator client: %v", err)
	}
	logger.Printf("🌉 Orchestrator: %s", client.BaseURL())

	// Conversation history store
	history, err := conversation.OpenStore(cfg.HistoryPath())
	if err != nil {
		logger.Fatalf("Failed to open history database: %v", err)
	}
	defer func() { _ = history.Close() }()
	logger.Printf("🗄️  History database: %s", cfg.HistoryPath())

	// Schedule store
	schedules, err := schedule.NewStore(dataDir)
	if err != nil {
		logger.Fatalf("Failed to open schedule database: %v", err)
	}
	defer func() { _ = schedules.Close() }()
	logger.Printf("📅 Schedule database: %s", cfg.SchedulePath())
	logger.Printf("📝 Logs directory: %s", logDir)
	logger.Println("")

	// Live session registry over the poll and stream engines
	manager := session.NewManager(session.ManagerConfig{
		Orchestrator: client,
		Store:        history,
		Tuning:       cfg.PollTuning(),
		StallTimeout: cfg.StreamStallTimeout(),
		BufferSize:   cfg.Sessions.EventBufferSize,
		MaxSessions:  cfg.Sessions.MaxActive,
		IdleTimeout:  cfg.SessionIdleTimeout(),
	})

	// Start resource cleanup
	cleanCfg := cleanup.DefaultConfig(history, dataDir)
	if cfg.Storage.HistoryRetentionDays > 0 {
		cleanCfg.HistoryRetention = time.Duration(cfg.Storage.HistoryRetentionDays) * 24 * time.Hour
	}
	cleaner := cleanup.New(cleanCfg)
	cleaner.Start()

	// Start backup automation if enabled
	var backupMgr *backup.Manager
	if cfg.Backup.Enabled {
		backupMgr, err = backup.New(backup.Config{
			DataDir:   dataDir,
			BackupDir: cfg.BackupDir(),
			Retention: cfg.Backup.Retention,
			Interval:  time.Duration(cfg.Backup.IntervalHours) * time.Hour,
		})
		if err != nil {
			logger.Printf("⚠️  Failed to initialize backup: %v", err)
		} else {
			backupMgr.Start()
		}
	}

	if len(cfg.Auth.Tokens) == 0 {
		logger.Println("⚠️  WARNING: auth.tokens is empty; the MCP endpoint accepts unauthenticated requests")
	}

	server := mcp.NewServer(manager, client, history, &mcp.ServerConfig{
		Schedules:          schedules,
		Tokens:             cfg.Auth.Tokens,
		RateLimitPerMinute: cfg.Auth.RateLimitPerMinute,
		Version:            Version,
	})

	addr := cfg.Server.Address
	if *addrFlag != "" {
		addr = *addrFlag
	}

	logger.Println("🚀 Starting Gevulot MCP server...")
	logger.Printf("📡 Server address: http://localhost%s/mcp", addr)
	logger.Println("   Use the chat, job, session, history, and schedule tools")
	logger.Println("")

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(addr)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		logger.Fatalf("Server error: %v", err)
	case sig := <-shutdownChan:
		logger.Printf("⚠️  Received signal %v, initiating graceful shutdown...", sig)

		logger.Println("   Stopping schedule runner...")
		server.Close()

		logger.Println("   Closing active sessions...")
		manager.Close()

		logger.Println("   Stopping cleanup...")
		cleaner.Stop()

		if backupMgr != nil {
			logger.Println("   Stopping backup...")
			backupMgr.Stop()
		}

		logger.Println("   Closing schedule database...")
		_ = schedules.Close()

		logger.Println("   Closing history database...")
		_ = history.Close()

		logger.Println("✅ Shutdown complete")
		_ = logger.CloseSlog()
		_ = logger.Close()

		os.Exit(0) //nolint:gocritic // intentional exit after manual cleanup
	}
}

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Directory to initialize (default: ~/.gevulot)")
	_ = fs.Parse(args)

	var gevulotDir string
	if *dirFlag != "" {
		absDir, err := filepath.Abs(*dirFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid directory: %v\n", err)
			os.Exit(1)
		}
		gevulotDir = absDir
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not determine home directory: %v\n", err)
			os.Exit(1)
		}
		gevulotDir = filepath.Join(homeDir, ".gevulot")
	}

	// Check if already initialized (look for the config file, not just
	// the directory)
	configFile := filepath.Join(gevulotDir, "gevulot.jsonc")
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("⚠️  %s is already initialized.\n", gevulotDir)
		fmt.Print("Overwrite? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
		_ = os.Remove(configFile)
	}

	fmt.Println("🧿 Initializing Gevulot")
	fmt.Println("")

	dirs := []string{
		gevulotDir,
		filepath.Join(gevulotDir, "data"),
		filepath.Join(gevulotDir, "data", "logs"),
		filepath.Join(gevulotDir, "data", "backups"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
			os.Exit(1)
		}
		fmt.Printf("   Created %s\n", dir)
	}

	if err := config.WriteDefault(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating gevulot.jsonc: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   Created %s\n", configFile)

	fmt.Println("")
	fmt.Println("✅ Gevulot initialized!")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("   1. Edit %s with your orchestrator URL and credentials\n", configFile)
	fmt.Println("   2. Run 'gevulot serve' to start the MCP server")
	fmt.Println("   3. Or run 'gevulot ask \"...\"' for a one-shot prompt")
}

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	path, err := config.FindConfigPath(*dirFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Gevulot not initialized. Run 'gevulot init' first.")
		fmt.Fprintf(os.Stderr, "(%v)\n", err)
		os.Exit(1)
	}
	cfg := mustLoadConfig(*dirFlag)

	fmt.Printf("Config:       %s\n", path)
	fmt.Printf("Orchestrator: %s\n", cfg.Orchestrator.BaseURL)
	if _, ok := cfg.OrchestratorToken(); ok {
		fmt.Println("Token:        configured")
	} else {
		fmt.Println("Token:        none")
	}
	fmt.Printf("Data dir:     %s\n", cfg.DataDir())
	fmt.Printf("History:      %s\n", cfg.HistoryPath())
	fmt.Printf("Schedules:    %s\n", cfg.SchedulePath())
	fmt.Printf("Backups:      %s\n", cfg.BackupDir())

	if cfg.Credentials == nil || len(cfg.Credentials.Tokens) == 0 {
		return
	}
	fmt.Println("\nCredentials:")
	for _, cred := range cfg.Credentials.ListCredentials() {
		line := "  " + cred.Name
		if cred.IsDefault {
			line += " (default)"
		}
		if cred.Description != "" {
			line += "  " + cred.Description
		}
		fmt.Println(line)
	}
}

func cmdAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	sessionFlag := fs.String("session", "", "Orchestrator session ID to continue")
	timeoutFlag := fs.Duration("timeout", 10*time.Minute, "How long to wait for the answer")
	quietFlag := fs.Bool("quiet", false, "Print only the final answer")
	_ = fs.Parse(args)

	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		fmt.Fprintln(os.Stderr, "Usage: gevulot ask [options] <message>")
		os.Exit(1)
	}

	client, cfg := newOrchestratorClient(*dirFlag)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeoutFlag)
	defer cancel()

	ack, err := client.Submit(ctx, &bridge.SubmitRequest{Message: message, SessionID: *sessionFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: submit failed: %v\n", err)
		os.Exit(1)
	}
	if !*quietFlag {
		fmt.Fprintf(os.Stderr, "Job %s submitted, waiting...\n", ack.JobID)
	}

	watcher := poll.Watch(ctx, client, ack.JobID, poll.Options{Tuning: cfg.PollTuning()})

	// Drain progress snapshots to keep the loop moving; print movement
	// to stderr so stdout carries only the answer
	go func() {
		var lastStatus bridge.JobStatus
		lastProgress := -1
		for job := range watcher.Updates() {
			if *quietFlag {
				continue
			}
			if job.Status == lastStatus && job.Progress == lastProgress {
				continue
			}
			lastStatus, lastProgress = job.Status, job.Progress
			fmt.Fprintf(os.Stderr, "  %s %d%%\n", job.Status, job.Progress)
		}
	}()

	result, err := watcher.Wait(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			fmt.Fprintf(os.Stderr, "Error: timed out waiting for job %s; it may still be running\n", ack.JobID)
			fmt.Fprintf(os.Stderr, "Check later with: gevulot result %s\n", ack.JobID)
		case errors.Is(err, context.Canceled):
			fmt.Fprintf(os.Stderr, "Interrupted; job %s is still running\n", ack.JobID)
			fmt.Fprintf(os.Stderr, "Cancel it with: gevulot cancel %s\n", ack.JobID)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Println(result.Text())
}

func cmdStream(args []string) {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	sessionFlag := fs.String("session", "", "Orchestrator session ID to continue")
	stagesFlag := fs.Bool("stages", false, "Print pipeline stage progress to stderr")
	_ = fs.Parse(args)

	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		fmt.Fprintln(os.Stderr, "Usage: gevulot stream [options] <message>")
		os.Exit(1)
	}

	client, cfg := newOrchestratorClient(*dirFlag)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	body, err := client.OpenStream(ctx, &bridge.SubmitRequest{Message: message, SessionID: *sessionFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: stream failed: %v\n", err)
		os.Exit(1)
	}

	consumer := stream.Consume(ctx, body, stream.Options{StallTimeout: cfg.StreamStallTimeout()})

	printed := false
	for event := range consumer.Events() {
		switch event.Type {
		case bridge.StreamEventTokenDelta:
			fmt.Print(event.Text)
			printed = true
		case bridge.StreamEventNodeProgress:
			if *stagesFlag {
				fmt.Fprintf(os.Stderr, "[%s]\n", event.Stage)
			}
		}
	}

	final, ferr := consumer.Final()
	if printed {
		fmt.Println()
	} else if final != "" {
		// Completion-only streams carry the whole answer in the final
		// frame
		fmt.Println(final)
	}
	if ferr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", ferr)
		os.Exit(1)
	}
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot status <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)
	if err := validation.ValidateJobID(jobID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client, _ := newOrchestratorClient(*dirFlag)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	job, err := client.Status(ctx, jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Job:       %s\n", job.ID)
	fmt.Printf("Status:    %s\n", job.Status)
	fmt.Printf("Progress:  %d%%\n", job.Progress)
	fmt.Printf("Created:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("Started:   %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if job.Error != "" {
		fmt.Printf("Error:     %s\n", job.Error)
	}

	if job.Status == bridge.JobCompleted {
		fmt.Printf("\nFetch the answer with: gevulot result %s\n", job.ID)
	} else if !job.Status.Terminal() {
		fmt.Printf("\nStill running; check again with: gevulot status %s\n", job.ID)
	}
}

func cmdResult(args []string) {
	fs := flag.NewFlagSet("result", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	rawFlag := fs.Bool("raw", false, "Print the raw result payload instead of the extracted text")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot result <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)
	if err := validation.ValidateJobID(jobID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client, _ := newOrchestratorClient(*dirFlag)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Result(ctx, jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *rawFlag {
		fmt.Println(string(result.Payload))
		return
	}
	fmt.Println(result.Text())
}

func cmdCancel(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot cancel <job_id>")
		os.Exit(1)
	}
	jobID := fs.Arg(0)
	if err := validation.ValidateJobID(jobID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client, _ := newOrchestratorClient(*dirFlag)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Cancel(ctx, jobID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Job %s cancelled.\n", jobID)
}

// cmdHistory handles the 'history' subcommand for the conversation store
func cmdHistory(args []string) {
	if len(args) < 1 {
		printHistoryUsage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "sessions":
		historySessions(cmdArgs)
	case "messages":
		historyMessages(cmdArgs)
	case "jobs":
		historyJobs(cmdArgs)
	case "search":
		historySearch(cmdArgs)
	case "prune":
		historyPrune(cmdArgs)
	case "help", "-h", "--help":
		printHistoryUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown history command: %s\n", cmd)
		printHistoryUsage()
		os.Exit(1)
	}
}

func printHistoryUsage() {
	fmt.Println(`Conversation History

Usage: gevulot history <command> [options]

Commands:
  sessions              List persisted sessions
  messages <session>    Print one session's transcript
  jobs <session>        List orchestrator jobs recorded for a session
  search <query>        Search message content
  prune                 Remove ended sessions past the retention window
  help                  Show this help

Examples:
  gevulot history sessions
  gevulot history messages sess_1a2b3c4d
  gevulot history jobs sess_1a2b3c4d
  gevulot history search "stack trace"
  gevulot history prune --days 30`)
}

// openHistoryStore opens the history database read path for CLI use
func openHistoryStore(dir string) *conversation.Store {
	cfg := mustLoadConfig(dir)
	store, err := conversation.OpenStore(cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func historySessions(args []string) {
	fs := flag.NewFlagSet("history sessions", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	limitFlag := fs.Int("limit", 50, "Maximum sessions to list")
	_ = fs.Parse(args)

	store := openHistoryStore(*dirFlag)
	defer func() { _ = store.Close() }()

	sessions, err := store.ListSessions(*limitFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
		os.Exit(1)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions in history.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tSTATE\tUPDATED\tENDED")
	for _, s := range sessions {
		ended := "-"
		if s.EndedAt != nil {
			ended = s.EndedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.ID, s.State, s.UpdatedAt.Format("2006-01-02 15:04"), ended)
	}
	_ = w.Flush()
}

func historyMessages(args []string) {
	fs := flag.NewFlagSet("history messages", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot history messages <session_id>")
		os.Exit(1)
	}
	sessionID := fs.Arg(0)
	if err := validation.ValidateSessionID(sessionID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := openHistoryStore(*dirFlag)
	defer func() { _ = store.Close() }()

	rec, err := store.GetSession(sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	messages, err := store.ListMessages(sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing messages: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Session %s (%s), started %s\n\n", rec.ID, rec.State, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(messages) == 0 {
		fmt.Printf("No messages for session %s.\n", sessionID)
		return
	}

	for _, msg := range messages {
		fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Role, msg.Content)
		if msg.Metadata.Error != "" {
			fmt.Printf("    (error: %s)\n", msg.Metadata.Error)
		}
	}
}

func historyJobs(args []string) {
	fs := flag.NewFlagSet("history jobs", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	limitFlag := fs.Int("limit", 50, "Maximum jobs to list")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot history jobs <session_id>")
		os.Exit(1)
	}
	sessionID := fs.Arg(0)
	if err := validation.ValidateSessionID(sessionID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := openHistoryStore(*dirFlag)
	defer func() { _ = store.Close() }()

	jobs, err := store.ListJobs(sessionID, *limitFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing jobs: %v\n", err)
		os.Exit(1)
	}

	if len(jobs) == 0 {
		fmt.Printf("No jobs recorded for session %s.\n", sessionID)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "JOB\tMODE\tSTATUS\tPROGRESS\tCREATED\tENDED")
	for _, j := range jobs {
		ended := "-"
		if j.EndedAt != nil {
			ended = j.EndedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
			j.ID, j.Mode, j.Status, j.Progress, j.CreatedAt.Format("2006-01-02 15:04"), ended)
	}
	_ = w.Flush()
}

func historySearch(args []string) {
	fs := flag.NewFlagSet("history search", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	limitFlag := fs.Int("limit", 20, "Maximum matches to show")
	_ = fs.Parse(args)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: gevulot history search <query>")
		os.Exit(1)
	}

	store := openHistoryStore(*dirFlag)
	defer func() { _ = store.Close() }()

	hits, err := store.SearchMessages(query, *limitFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error searching messages: %v\n", err)
		os.Exit(1)
	}

	if len(hits) == 0 {
		fmt.Printf("No messages matching %q.\n", query)
		return
	}

	fmt.Printf("Found %d match(es) for %q:\n\n", len(hits), query)
	for _, hit := range hits {
		fmt.Printf("%s  %s  [%s]\n    %s\n",
			hit.SessionID, hit.Timestamp.Format("2006-01-02 15:04"), hit.Role, hit.Snippet)
	}
}

func historyPrune(args []string) {
	fs := flag.NewFlagSet("history prune", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	daysFlag := fs.Int("days", 0, "Retention window in days (default: storage.history_retention_days)")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*dirFlag)
	store, err := conversation.OpenStore(cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	days := cfg.Storage.HistoryRetentionDays
	if *daysFlag > 0 {
		days = *daysFlag
	}

	removed, err := store.PruneBefore(time.Now().AddDate(0, 0, -days))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning history: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Pruned %d session(s) older than %d day(s).\n", removed, days)
}

// cmdSchedule handles the 'schedule' subcommand for scheduled prompts.
// Create, inspect, and toggle live here; on-demand triggering is an MCP
// tool action because it needs the running server's session manager.
func cmdSchedule(args []string) {
	if len(args) < 1 {
		printScheduleUsage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printScheduleUsage()
		return
	}

	switch cmd {
	case "list":
		scheduleList(cmdArgs)
	case "create":
		scheduleCreate(cmdArgs)
	case "get":
		scheduleGet(cmdArgs)
	case "enable":
		scheduleSetEnabled(cmdArgs, true)
	case "disable":
		scheduleSetEnabled(cmdArgs, false)
	case "delete":
		scheduleDelete(cmdArgs)
	case "history":
		scheduleHistory(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown schedule command: %s\n", cmd)
		printScheduleUsage()
		os.Exit(1)
	}
}

func printScheduleUsage() {
	fmt.Println(`Scheduled Prompts

Usage: gevulot schedule <command> [options]

Commands:
  list                  List schedules
  create                Create a schedule
  get <id>              Show one schedule
  enable <id>           Enable a schedule
  disable <id>          Disable a schedule
  delete <id>           Delete a schedule and its execution history
  history <id>          Show recent executions
  help                  Show this help

Examples:
  gevulot schedule create --name daily-report --cron "0 9 * * *" --prompt "summarize overnight activity"
  gevulot schedule list
  gevulot schedule disable sched_1a2b3c4d
  gevulot schedule history sched_1a2b3c4d`)
}

// openScheduleStore opens the schedule database for CLI use
func openScheduleStore(dir string) *schedule.Store {
	cfg := mustLoadConfig(dir)
	store, err := schedule.NewStore(cfg.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening schedule database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func scheduleList(args []string) {
	fs := flag.NewFlagSet("schedule list", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	store := openScheduleStore(*dirFlag)
	defer func() { _ = store.Close() }()

	schedules, err := store.List(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing schedules: %v\n", err)
		os.Exit(1)
	}

	if len(schedules) == 0 {
		fmt.Println("No schedules found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCRON\tSTATUS\tLAST RUN\tNEXT RUN")
	for _, s := range schedules {
		status := "enabled"
		if !s.Enabled {
			status = "disabled"
		}
		lastRun := "never"
		if s.LastRunAt != nil {
			lastRun = s.LastRunAt.Format("2006-01-02 15:04")
		}
		nextRun := "-"
		if s.NextRunAt != nil {
			nextRun = s.NextRunAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.CronExpr, status, lastRun, nextRun)
	}
	_ = w.Flush()
}

func scheduleCreate(args []string) {
	fs := flag.NewFlagSet("schedule create", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	name := fs.String("name", "", "Schedule name (required)")
	cronExpr := fs.String("cron", "", "5-field cron expression (required)")
	prompt := fs.String("prompt", "", "Prompt submitted each run (required)")
	overlap := fs.String("overlap", string(schedule.OverlapSkip), "Overlap behavior: skip, queue, parallel")
	sessionMode := fs.String("session", string(schedule.SessionResume), "Session behavior: resume, new")
	disabled := fs.Bool("disabled", false, "Create the schedule disabled")
	_ = fs.Parse(args)

	if *name == "" || *cronExpr == "" || *prompt == "" {
		fmt.Fprintln(os.Stderr, "Error: --name, --cron, and --prompt are required")
		fs.PrintDefaults()
		os.Exit(1)
	}
	if !schedule.IsValidOverlapBehavior(schedule.OverlapBehavior(*overlap)) {
		fmt.Fprintf(os.Stderr, "Error: invalid overlap behavior %q (one of: skip, queue, parallel)\n", *overlap)
		os.Exit(1)
	}
	if !schedule.IsValidSessionBehavior(schedule.SessionBehavior(*sessionMode)) {
		fmt.Fprintf(os.Stderr, "Error: invalid session behavior %q (one of: resume, new)\n", *sessionMode)
		os.Exit(1)
	}

	store := openScheduleStore(*dirFlag)
	defer func() { _ = store.Close() }()

	sched := &schedule.Schedule{
		Name:            *name,
		CronExpr:        *cronExpr,
		Prompt:          *prompt,
		Enabled:         !*disabled,
		OverlapBehavior: schedule.OverlapBehavior(*overlap),
		SessionBehavior: schedule.SessionBehavior(*sessionMode),
	}
	if err := store.Create(sched); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schedule: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Schedule %s created.\n", sched.ID)
	if sched.NextRunAt != nil {
		fmt.Printf("   Next run: %s\n", sched.NextRunAt.Format("2006-01-02 15:04:05"))
	}
}

func scheduleGet(args []string) {
	fs := flag.NewFlagSet("schedule get", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot schedule get <schedule_id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	if err := validation.ValidateScheduleID(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := openScheduleStore(*dirFlag)
	defer func() { _ = store.Close() }()

	sched, err := store.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	status := "enabled"
	if !sched.Enabled {
		status = "disabled"
	}
	fmt.Printf("Schedule: %s\n", sched.Name)
	fmt.Printf("ID:       %s\n", sched.ID)
	fmt.Printf("Cron:     %s\n", sched.CronExpr)
	fmt.Printf("Status:   %s\n", status)
	fmt.Printf("Overlap:  %s\n", sched.OverlapBehavior)
	fmt.Printf("Session:  %s\n", sched.SessionBehavior)
	if sched.SessionID != "" {
		fmt.Printf("Pinned:   %s\n", sched.SessionID)
	}
	if sched.LastRunAt != nil {
		fmt.Printf("Last run: %s\n", sched.LastRunAt.Format("2006-01-02 15:04:05"))
	}
	if sched.NextRunAt != nil {
		fmt.Printf("Next run: %s\n", sched.NextRunAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Prompt:\n%s\n", sched.Prompt)
}

func scheduleSetEnabled(args []string, enabled bool) {
	verb := "enable"
	if !enabled {
		verb = "disable"
	}

	fs := flag.NewFlagSet("schedule "+verb, flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: gevulot schedule %s <schedule_id>\n", verb)
		os.Exit(1)
	}
	id := fs.Arg(0)
	if err := validation.ValidateScheduleID(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := openScheduleStore(*dirFlag)
	defer func() { _ = store.Close() }()

	if err := store.Update(id, &schedule.ScheduleUpdate{Enabled: &enabled}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Schedule %s %sd.\n", id, verb)
}

func scheduleDelete(args []string) {
	fs := flag.NewFlagSet("schedule delete", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot schedule delete <schedule_id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	if err := validation.ValidateScheduleID(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := openScheduleStore(*dirFlag)
	defer func() { _ = store.Close() }()

	if err := store.Delete(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Schedule %s deleted.\n", id)
}

func scheduleHistory(args []string) {
	fs := flag.NewFlagSet("schedule history", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	limitFlag := fs.Int("limit", 10, "Maximum executions to show")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot schedule history <schedule_id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	if err := validation.ValidateScheduleID(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := openScheduleStore(*dirFlag)
	defer func() { _ = store.Close() }()

	executions, err := store.ListExecutions(id, *limitFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(executions) == 0 {
		fmt.Printf("No executions recorded for %s.\n", id)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EXECUTED\tSTATUS\tJOB\tDURATION\tDETAIL")
	for _, exec := range executions {
		jobID := exec.JobID
		if jobID == "" {
			jobID = "-"
		}
		detail := exec.Output
		if exec.Error != "" {
			detail = exec.Error
		}
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n",
			exec.ExecutedAt.Format("2006-01-02 15:04:05"), exec.Status, jobID, exec.DurationMs, detail)
	}
	_ = w.Flush()
}

// cmdCleanup runs one retention pass and reports disk usage
func cmdCleanup(args []string) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	daysFlag := fs.Int("days", 0, "Retention window in days (default: storage.history_retention_days)")
	_ = fs.Parse(args)

	cfg := mustLoadConfig(*dirFlag)
	store, err := conversation.OpenStore(cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	days := cfg.Storage.HistoryRetentionDays
	if *daysFlag > 0 {
		days = *daysFlag
	}

	cleaner := cleanup.New(cleanup.Config{
		Store:            store,
		DataDir:          cfg.DataDir(),
		HistoryRetention: time.Duration(days) * 24 * time.Hour,
		DiskWarnPercent:  80,
		DiskErrorPercent: 90,
	})

	removed, err := cleaner.RunOnce()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Pruned %d ended session(s) older than %d day(s).\n", removed, days)

	used, total, percent, err := cleaner.DiskUsage()
	if err == nil {
		fmt.Printf("   Disk usage: %.1f%% (%s of %s)\n", percent, humanBytes(used), humanBytes(total))
	}
}

// cmdBackup handles the 'backup' subcommand for data snapshots
func cmdBackup(args []string) {
	if len(args) < 1 {
		printBackupUsage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "create":
		backupCreate(cmdArgs)
	case "list":
		backupList(cmdArgs)
	case "restore":
		backupRestore(cmdArgs)
	case "manifest":
		backupManifest(cmdArgs)
	case "help", "-h", "--help":
		printBackupUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown backup command: %s\n", cmd)
		printBackupUsage()
		os.Exit(1)
	}
}

func printBackupUsage() {
	fmt.Println(`Data Snapshots

Usage: gevulot backup <command> [options]

Commands:
  create            Snapshot the data directory
  list              List snapshots, newest first
  restore <file>    Restore a snapshot into the data directory
  manifest          Print a JSON manifest of all snapshots
  help              Show this help

Examples:
  gevulot backup create
  gevulot backup list
  gevulot backup restore gevulot_20260823_120000.tar.gz
  gevulot backup manifest > backups.json`)
}

// newBackupManager builds the snapshot manager for CLI use
func newBackupManager(dir string) *backup.Manager {
	cfg := mustLoadConfig(dir)
	mgr, err := backup.New(backup.Config{
		DataDir:   cfg.DataDir(),
		BackupDir: cfg.BackupDir(),
		Retention: cfg.Backup.Retention,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return mgr
}

func backupCreate(args []string) {
	fs := flag.NewFlagSet("backup create", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	mgr := newBackupManager(*dirFlag)
	snapshot, err := mgr.Create()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating backup: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Created backup: %s (%s)\n", snapshot.Filename, humanBytes(uint64(snapshot.SizeBytes)))
}

func backupList(args []string) {
	fs := flag.NewFlagSet("backup list", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	mgr := newBackupManager(*dirFlag)
	snapshots, err := mgr.ListSnapshots()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing backups: %v\n", err)
		os.Exit(1)
	}

	if len(snapshots) == 0 {
		fmt.Println("No backups found.")
		fmt.Println()
		fmt.Println("Create one with: gevulot backup create")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILENAME\tCREATED\tSIZE")
	for _, s := range snapshots {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			s.Filename, s.Timestamp.Format("2006-01-02 15:04:05"), humanBytes(uint64(s.SizeBytes)))
	}
	_ = w.Flush()
}

func backupRestore(args []string) {
	fs := flag.NewFlagSet("backup restore", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	yesFlag := fs.Bool("yes", false, "Skip the confirmation prompt")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gevulot backup restore <filename>")
		os.Exit(1)
	}
	filename := fs.Arg(0)

	if !*yesFlag {
		fmt.Printf("⚠️  Restoring %s overwrites files in the data directory.\n", filename)
		fmt.Print("Continue? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	mgr := newBackupManager(*dirFlag)
	if err := mgr.Restore(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Error restoring backup: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Restored from backup: %s\n", filename)
}

func backupManifest(args []string) {
	fs := flag.NewFlagSet("backup manifest", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Config directory (default: auto-detect)")
	_ = fs.Parse(args)

	mgr := newBackupManager(*dirFlag)
	manifest, err := mgr.ExportManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting manifest: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(manifest))
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
