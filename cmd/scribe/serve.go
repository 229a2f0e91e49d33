package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/api"
	"github.com/MikeSquared-Agency/scribe/internal/checkpoint"
	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/feed"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/slack"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watch service (HTTP API, NATS feed, optional Slack)",
		Long: `Run scribe as a long-lived service. Configuration comes from the
environment (SCRIBE_*, NATS_URL, DATABASE_URL, SLACK_*).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel, os.Stdout, false)

	slog.Info("scribe starting", "port", cfg.Port, "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Checkpoints: Postgres when configured, JSON file otherwise.
	var checkpoints checkpoint.Store
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		checkpoints = db
		slog.Info("database connected")
	} else {
		fs, err := checkpoint.OpenFileStore(cfg.CheckpointPath)
		if err != nil {
			return err
		}
		checkpoints = fs
		slog.Info("using file checkpoints", "path", fs.Path())
	}

	projector := activity.NewProjector(cfg.PreviewChars)

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	mgr := feed.NewManager(feed.Config{
		PollInterval: cfg.PollInterval,
		Matching:     cfg.ToolMatching,
		Notify:       cfg.Notify,
		Root:         cfg.TranscriptRoot,
	}, checkpoints, slog.Default(), feed.NewPublishSink(hermesClient, projector))

	// Slack is optional; watches only post there when they ask to.
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		poster := slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		mgr.SetSlackSink(feed.NewSlackSink(poster, projector))
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, activity threads disabled")
	}

	if err := hermesClient.Subscribe(hermes.SubjectWatchRequest, mgr.HandleWatchRequest); err != nil {
		return err
	}
	if err := hermesClient.Subscribe(hermes.SubjectWatchCancel, mgr.HandleCancelRequest); err != nil {
		return err
	}

	if cfg.WatchesFile != "" {
		watches, err := config.LoadWatches(cfg.WatchesFile)
		if err != nil {
			return err
		}
		for _, w := range watches {
			if _, err := mgr.Start(ctx, feed.Request{
				Path:       w.Path,
				FromOffset: w.FromOffset,
				Resume:     w.Resume,
				Slack:      w.Slack,
			}); err != nil {
				slog.Error("failed to start configured watch", "path", w.Path, "error", err)
			}
		}
		slog.Info("configured watches loaded", "file", cfg.WatchesFile, "count", len(watches))
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, mgr, projector)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	// Announce registration
	if err := hermesClient.Publish(ctx, hermes.SubjectRegistered, hermes.Registration{
		AgentID:   "scribe",
		Version:   Version,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("scribe ready", "port", cfg.Port)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
		if runErr != nil {
			slog.Error("HTTP server error", "error", runErr)
		}
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		slog.Warn("watches did not stop in time", "running", mgr.Running(), "error", err)
	}

	slog.Info("scribe stopped")
	return runErr
}
