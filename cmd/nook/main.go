// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// nook is a single-room Matrix chat panel for the terminal. It logs
// in with a password, streams the configured room's messages into a
// scrollback view, and sends text and voice messages from a composer.
//
// Configuration comes from a YAML file named by --config or the
// NOOK_CONFIG environment variable. The password never appears in
// the config file: identity.password_file points at a file (or "-"
// for stdin), and when it is unset nook prompts on the terminal
// before starting the UI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/nook-im/nook/chat"
	"github.com/nook-im/nook/lib/clock"
	"github.com/nook-im/nook/lib/config"
	"github.com/nook-im/nook/lib/ref"
	"github.com/nook-im/nook/lib/secret"
	"github.com/nook-im/nook/lib/version"
	"github.com/nook-im/nook/messaging"
	"github.com/nook-im/nook/panelui"
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

	flagSet := pflag.NewFlagSet("nook", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file (overrides log.output)")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("nook")
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

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if logOutput != "" {
		cfg.Log.Output = logOutput
	}

	logger, closeLog, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	// Read the password before the TUI takes over the terminal.
	password, err := readPassword(cfg.Identity)
	if err != nil {
		return err
	}
	defer password.Close()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver.URL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	// Config validation already checked these.
	userID := ref.MustParseUserID(cfg.Identity.UserID)
	roomID := ref.MustParseRoomID(cfg.Room.ID)

	manager, err := chat.NewManager(chat.ManagerConfig{
		Client:         client,
		UserID:         userID,
		Password:       password,
		RoomID:         roomID,
		Clock:          clock.Real(),
		DefaultBackoff: time.Duration(cfg.Retry.DefaultBackoffMS) * time.Millisecond,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	manager.Start()

	model := panelui.NewModel(manager, cfg.Room.ID)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := program.Run()

	// Quit via ctrl+c already tore the session down; Teardown is
	// idempotent, so cover abnormal exits too.
	manager.Teardown()
	<-manager.Done()
	return runErr
}

// readPassword resolves the login password from the configured
// source: a file path, "-" for stdin, or an interactive prompt when
// no path is set.
func readPassword(identity config.IdentityConfig) (*secret.Buffer, error) {
	if identity.PasswordFile != "" {
		buffer, err := secret.ReadFromPath(identity.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("reading password from %s: %w", identity.PasswordFile, err)
		}
		return buffer, nil
	}
	return secret.Prompt(fmt.Sprintf("password for %s: ", identity.UserID))
}

// buildLogger opens the configured log sink. Logs are discarded when
// no output file is set: the TUI owns the terminal, so stderr is not
// usable while the panel runs.
func buildLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	if cfg.Output == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log output %s: %w", cfg.Output, err)
	}

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(handler), func() { file.Close() }, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `nook — single-room Matrix chat panel for the terminal.

Reads its configuration from the file named by --config, or by the
%s environment variable when the flag is absent. The config
names the homeserver, the account, the room, and an optional log
file. See the package documentation for the full schema.

Usage:
  nook [flags]

Flags:
%s`, config.EnvVar, flagSet.FlagUsages())
}
