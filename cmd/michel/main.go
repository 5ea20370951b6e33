// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/oknozor/michel-bot/lib/bridge"
	"github.com/oknozor/michel-bot/lib/clock"
	"github.com/oknozor/michel-bot/lib/config"
	"github.com/oknozor/michel-bot/lib/issuestore"
	"github.com/oknozor/michel-bot/lib/ref"
	"github.com/oknozor/michel-bot/lib/secret"
	"github.com/oknozor/michel-bot/lib/seerr"
	"github.com/oknozor/michel-bot/lib/service"
	"github.com/oknozor/michel-bot/lib/sqlitepool"
	"github.com/oknozor/michel-bot/messaging"
)

const version = "0.3.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "michel:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to michel.yaml (overrides MICHEL_CONFIG)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println("michel", version)
		return nil
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
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load all secrets up front so misconfiguration fails before any
	// network traffic.
	password, err := readSecret(cfg.Matrix.PasswordFile, "Matrix password: ")
	if err != nil {
		return fmt.Errorf("reading matrix password: %w", err)
	}
	defer password.Close()

	apiKey, err := readSecret(cfg.Seerr.APIKeyFile, "Seerr API key: ")
	if err != nil {
		return fmt.Errorf("reading seerr api key: %w", err)
	}
	defer apiKey.Close()

	var webhookToken []byte
	if cfg.Webhook.AuthTokenFile != "" {
		tokenBuffer, err := secret.ReadFromPath(cfg.Webhook.AuthTokenFile)
		if err != nil {
			return fmt.Errorf("reading webhook auth token: %w", err)
		}
		defer tokenBuffer.Close()
		webhookToken = tokenBuffer.Bytes()
	}

	// Matrix login and support room membership.
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Matrix.HomeserverURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	session, err := client.Login(ctx, cfg.Matrix.Username, password)
	if err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}
	defer session.Close()

	roomAlias := ref.MustParseRoomAlias(cfg.Matrix.RoomAlias)
	roomID, err := session.ResolveAlias(ctx, roomAlias)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", roomAlias, err)
	}
	if _, err := session.JoinRoom(ctx, roomID); err != nil {
		return fmt.Errorf("joining %s: %w", roomID, err)
	}
	logger.Info("joined support room",
		"alias", roomAlias,
		"room_id", roomID,
		"user_id", session.UserID(),
	)

	// Persistent issue state.
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0700); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      cfg.Database.Path,
		Logger:    logger,
		OnConnect: issuestore.Schema,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	store := issuestore.New(pool)

	tickets, err := seerr.NewClient(seerr.ClientConfig{
		BaseURL: cfg.Seerr.BaseURL,
		APIKey:  apiKey,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	issueBridge := bridge.New(bridge.Config{
		Store:     store,
		Projector: bridge.NewRoomProjector(session, roomID),
		Tickets:   tickets,
		Logger:    logger,
		Clock:     clock.Real(),
	})

	// Webhook listener.
	webhookHandler := NewWebhookHandler(webhookToken, logger, issueBridge.HandleWebhook)
	mux := http.NewServeMux()
	mux.Handle("/webhook/seerr", webhookHandler)

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.Webhook.ListenAddress,
		Handler: mux,
		Logger:  logger,
	})
	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	select {
	case <-httpServer.Ready():
		logger.Info("webhook listener ready", "address", httpServer.Addr().String())
	case <-ctx.Done():
		return ctx.Err()
	}

	// Operations socket.
	socketServer := service.NewSocketServer(cfg.Ops.SocketPath, logger)
	registerOpsActions(socketServer, store, time.Now())
	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	// Room command routing. The initial sync establishes "now"; events
	// delivered before startup are never replayed.
	filter := syncFilter(roomID)
	sinceToken, _, err := service.InitialSync(ctx, session, filter)
	if err != nil {
		return err
	}
	router := NewRoomRouter(issueBridge, roomID, session.UserID(), cfg.AdminSet(), logger)
	go service.RunSyncLoop(ctx, session, service.SyncConfig{
		Filter: filter,
	}, sinceToken, router.HandleSync, clock.Real(), logger)

	logger.Info("michel running",
		"version", version,
		"room_id", roomID,
		"webhook_address", cfg.Webhook.ListenAddress,
		"ops_socket", cfg.Ops.SocketPath,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := <-httpDone; err != nil {
		logger.Error("http server error", "error", err)
	}
	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	return nil
}

// newLogger builds the process logger at the configured level. Logs go
// to stderr as key-value text lines.
func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	}))
}

// readSecret loads a secret from the given path into locked memory.
// When the path is "-" and stdin is a terminal, the secret is prompted
// for without echo; otherwise "-" reads stdin as a pipe.
func readSecret(path, prompt string) (*secret.Buffer, error) {
	if path == "-" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading from terminal: %w", err)
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("empty secret")
		}
		return secret.NewFromBytes(raw)
	}
	return secret.ReadFromPath(path)
}
