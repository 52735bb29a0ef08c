// gevulot-mcp serves the Gevulot tool registry over stdio for MCP
// clients that spawn their servers as subprocesses. It shares
// gevulot.jsonc and the data directory with 'gevulot serve'.
//
// stdout carries the MCP protocol, so info logging goes to the log
// file only and audit records go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/HyphaGroup/gevulot/internal/audit"
	"github.com/HyphaGroup/gevulot/internal/bridge"
	"github.com/HyphaGroup/gevulot/internal/config"
	"github.com/HyphaGroup/gevulot/internal/conversation"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/mcp"
	"github.com/HyphaGroup/gevulot/internal/schedule"
	"github.com/HyphaGroup/gevulot/internal/session"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	dirFlag := flag.String("dir", "", "Config directory (default: auto-detect)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gevulot-mcp %s\n", Version)
		return
	}

	if err := run(*dirFlag); err != nil {
		fmt.Fprintf(os.Stderr, "gevulot-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	if _, err := config.FindConfigPath(dir); err != nil {
		return fmt.Errorf("not initialized, run 'gevulot init' first (%w)", err)
	}
	cfg, err := config.LoadAll(dir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if err := logger.InitQuiet(filepath.Join(dataDir, "logs")); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Close() }()
	audit.SetWriter(os.Stderr)

	token, _ := cfg.OrchestratorToken()
	client, err := bridge.NewClient(bridge.Options{
		BaseURL:        cfg.Orchestrator.BaseURL,
		Credentials:    bridge.Credentials{Token: token},
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return fmt.Errorf("create orchestrator client: %w", err)
	}

	history, err := conversation.OpenStore(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer func() { _ = history.Close() }()

	schedules, err := schedule.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open schedule database: %w", err)
	}
	defer func() { _ = schedules.Close() }()

	manager := session.NewManager(session.ManagerConfig{
		Orchestrator: client,
		Store:        history,
		Tuning:       cfg.PollTuning(),
		StallTimeout: cfg.StreamStallTimeout(),
		BufferSize:   cfg.Sessions.EventBufferSize,
		MaxSessions:  cfg.Sessions.MaxActive,
		IdleTimeout:  cfg.SessionIdleTimeout(),
	})
	defer manager.Close()

	// No Tokens or RateLimitPerMinute here: those guard the HTTP
	// endpoint, and stdio trusts the process that spawned us
	server := mcp.NewServer(manager, client, history, &mcp.ServerConfig{
		Schedules: schedules,
		Version:   Version,
	})
	defer server.Close()

	logger.Printf("🧿 gevulot-mcp %s serving stdio (orchestrator: %s)", Version, client.BaseURL())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Println("Shutdown complete")
	return nil
}
