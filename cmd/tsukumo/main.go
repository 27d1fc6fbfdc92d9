package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tsukumo-bot/tsukumo/internal/api"
	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/config"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/profile"
	"github.com/tsukumo-bot/tsukumo/internal/render"
	"github.com/tsukumo-bot/tsukumo/internal/signal"
	"github.com/tsukumo-bot/tsukumo/internal/stocks"
	"github.com/tsukumo-bot/tsukumo/internal/storage"
	"github.com/tsukumo-bot/tsukumo/internal/store"
	"github.com/tsukumo-bot/tsukumo/internal/tags"
	"github.com/tsukumo-bot/tsukumo/internal/tui/watch"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)

	// --- ROOT SHORTCUTS ---
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "render-worker":
		// Hidden mode: the execution pool re-execs this binary per job.
		return runRenderWorker()
	case "version", "--version":
		fmt.Printf("tsukumo %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`tsukumo - Tag-slinging chat bot with a sandboxed template renderer

Usage:
  tsukumo <noun> <action> [flags]

System Commands:
  system start      Start the bot in the foreground
  system watch      Real-time dispatch monitoring TUI

Config Commands:
  config check      Validate syntax and integrity
  config lock       Authorize current config (update integrity hash)

General:
  version           Show version information
  help              Show this help message
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Fprintln(os.Stderr, "Usage: tsukumo system <action>")
		fmt.Fprintln(os.Stderr, "Actions: start, watch")
		if len(args) >= 1 {
			return 0
		}
		return 1
	}

	switch args[0] {
	case "start":
		return runStart(args[1:])
	case "watch":
		return runWatch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Fprintln(os.Stderr, "Usage: tsukumo config <action> [flags]")
		fmt.Fprintln(os.Stderr, "Actions: check, lock")
		if len(args) >= 1 {
			return 0
		}
		return 1
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

// --- ACTION IMPLEMENTATIONS ---

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config check FAILED: %v\n", err)
		return 1
	}
	if err := config.Check(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Integrity check FAILED: %v\n", err)
		return 1
	}
	fmt.Println("Config check PASSED.")
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to lock an invalid config: %v\n", err)
		return 1
	}
	if err := config.Lock(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}
	fmt.Printf("Locked %s\n", *configPath)
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:8196", "Bot API URL")
	apiKey := fs.String("api-key", os.Getenv("TSUKUMO_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runRenderWorker() int {
	if err := render.RunWorker(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "render worker: %v\n", err)
		return 1
	}
	return 0
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if err := config.Check(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config integrity check failed: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("tsukumo starting", "version", version, "config", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.DBPath)

	st := store.New(db)
	hub := signal.NewHub(256)
	counter := command.NewCounter()
	pool := render.NewPool(cfg.Render.PoolSize, cfg.Render.WorkerArgv, cfg.Render.Deadline)

	// The platform adapter lives behind cfg.Delivery.URL: it accepts
	// outbound messages on /messages and answers directory queries under
	// /guilds/.
	sender := chat.NewWebhookSender(
		strings.TrimRight(cfg.Delivery.URL, "/")+"/messages", cfg.Delivery.Token)
	adapter := chat.NewAdapterClient(
		strings.TrimRight(cfg.Delivery.URL, "/"), cfg.Delivery.Token)

	registry := command.NewRegistry()
	router := command.NewRouter(cfg.Bot.Prefix, registry, hub, counter, sender)

	builtins := command.NewBuiltins(registry, counter, hub, sender, st, cfg.Bot.OwnerID)
	registry.Add(builtins.Descriptors()...)

	tagHandler := tags.NewHandler(st, adapter, adapter)
	registry.Add(tagHandler.Descriptors(sender)...)

	stockHandler := stocks.NewHandler(st, sender, adapter, adapter)
	registry.Add(stockHandler.Descriptors()...)

	profileHandler := profile.NewHandler(st, sender, cfg.Bot.Prefix)
	registry.Add(profileHandler.Descriptors()...)
	router.AddHook(profileHandler.XPHook)

	fallback := tags.NewFallback(st, pool, sender, hub, func(err error) {
		logger.Error("tag fallback failed", "error", err)
	})
	go fallback.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	apiServer := api.New(api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.APIKey,
	}, router, hub, counter, pool.Size(), log.WithComponent("api"))
	go func() {
		if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	logger.Info("tsukumo running (press Ctrl+C to stop)",
		"prefix", cfg.Bot.Prefix, "listen", cfg.API.Listen, "pool_size", pool.Size())

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("tsukumo stopped")
	return 0
}
