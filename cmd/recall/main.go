// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

// recall is a terminal client for a Recall notes server. It opens a
// chat session against the server's assistant endpoint, streams the
// response live into the transcript, and keeps a local SQLite cache so
// drafts survive restarts and past transcripts stay readable offline.
//
// Configuration comes from a YAML file named by the RECALL_CONFIG
// environment variable or the --config flag; the only required setting
// is the server URL. See lib/config for the full schema.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/recall-sh/recall/lib/api"
	"github.com/recall-sh/recall/lib/chat"
	"github.com/recall-sh/recall/lib/chatui"
	"github.com/recall-sh/recall/lib/config"
	"github.com/recall-sh/recall/lib/localstore"
	"github.com/recall-sh/recall/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logOutput string

	flagSet := pflag.NewFlagSet("recall", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to recall.yaml (default: $RECALL_CONFIG)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file (in addition to TUI display)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing so it works with no config.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("recall")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.Root, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	return runTUI(cfg, logOutput)
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// runTUI wires the client, local store, controller, and bubbletea
// program together and runs until the user quits.
//
// Background logging goes through a chatui.LogHandler that surfaces
// warnings and errors on the status line instead of writing to stderr,
// which would corrupt the alt-screen display. An optional JSONL file
// handler captures everything for post-mortem debugging; log.file from
// the config and --log-output both enable it, with the flag winning.
func runTUI(cfg *config.Config, logOutput string) error {
	tuiHandler := chatui.NewLogHandler(slog.LevelWarn)

	logFile := cfg.Log.File
	if logOutput != "" {
		logFile = logOutput
	}

	var logger *slog.Logger
	if logFile != "" {
		fileHandler, fileCloser, err := openFileLogHandler(logFile, cfg.Log.ParsedLevel())
		if err != nil {
			return fmt.Errorf("cannot open log file %s: %w", logFile, err)
		}
		defer fileCloser()
		logger = slog.New(fanoutHandler{tuiHandler, fileHandler})
	} else {
		logger = slog.New(tuiHandler)
	}

	store, err := localstore.Open(cfg.Paths.Database, logger)
	if err != nil {
		// The cache is an enhancement: without it the client still
		// works, minus drafts and offline transcripts.
		logger.Warn("local cache unavailable", "path", cfg.Paths.Database, "error", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	client := api.NewClient(cfg.Server.URL, cfg.Server.AccessToken, cfg.RequestTimeout())
	if cfg.Server.Model != "" {
		client.SetModel(cfg.Server.Model)
	}

	notifier := &chatui.StreamNotifier{}
	controller := chat.NewController(client, chat.UUIDGenerator{}, logger, notifier.Notify)

	// The persisted toggle wins over the config default once the user
	// has flipped it.
	showThinking := cfg.UI.ShowThinking
	if store != nil {
		if value, err := store.LoadSetting(context.Background(), chatui.SettingShowThinking); err == nil && value != "" {
			showThinking = value == "true"
		}
	}

	model := chatui.New(chatui.Options{
		Controller:        controller,
		Client:            client,
		Store:             storeOrNil(store),
		Logger:            logger,
		Theme:             chatui.DefaultTheme,
		Keys:              chatui.DefaultKeyMap,
		ShowThinking:      showThinking,
		CompactTimestamps: cfg.UI.CompactTimestamps,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	tuiHandler.SetProgram(program)
	notifier.SetProgram(program)

	_, err = program.Run()
	return err
}

// storeOrNil avoids handing the model a typed-nil interface when the
// cache failed to open.
func storeOrNil(store *localstore.Store) chatui.LocalStore {
	if store == nil {
		return nil
	}
	return store
}

// openFileLogHandler creates a slog.JSONHandler writing to path. The
// parent directory is created if missing; the file is appended to so
// successive runs share one log.
func openFileLogHandler(path string, level slog.Level) (slog.Handler, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Recall — terminal chat client for your notes.

Connects to a Recall server, lists your chat sessions, and streams
assistant answers grounded in your saved memos. Drafts and transcripts
are cached locally so the last state of every session stays readable
when the server is unreachable.

Usage:
  recall [flags]

Configuration is read from the file named by RECALL_CONFIG, or from
--config. Minimal example:

  server:
    url: https://memos.example.com
    access_token: ${RECALL_TOKEN}

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
