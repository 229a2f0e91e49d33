package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/checkpoint"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

func watchCmd() *cobra.Command {
	var (
		out            outputOptions
		matching       string
		fromOffset     int64
		interval       time.Duration
		notify         bool
		checkpointPath string
	)

	cmd := &cobra.Command{
		Use:   "watch <transcript.jsonl>",
		Short: "Follow a transcript and print events as they are written",
		Long: `Follow a transcript until interrupted. On Ctrl-C any open turn is closed
with a final turn_end before exiting.

With --checkpoint the consumed offset is saved after every poll and the next
run resumes from it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(os.Getenv("LOG_LEVEL"), os.Stderr, true)

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			matcher, err := transcript.NewMatcher(matching)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := transcript.WatchOptions{
				FromOffset:   fromOffset,
				PollInterval: interval,
				Matcher:      matcher,
				Logger:       slog.Default(),
			}

			if checkpointPath != "" {
				store, err := checkpoint.OpenFileStore(checkpointPath)
				if err != nil {
					return err
				}
				cp, err := store.Load(ctx, path)
				if err != nil {
					return err
				}
				offset, _, stale := checkpoint.ResumeOffset(cp, opts.FromOffset, path)
				switch {
				case stale:
					slog.Warn("checkpoint beyond end of file, ignoring", "checkpoint", cp.Offset)
				case offset != opts.FromOffset:
					opts.FromOffset = offset
					slog.Info("resuming from checkpoint", "offset", offset)
				}
				opts.OnAdvance = func(off int64) {
					if err := store.Save(ctx, checkpoint.Checkpoint{Path: path, Offset: off}); err != nil {
						slog.Warn("failed to save checkpoint", "offset", off, "error", err)
					}
				}
			}

			if notify {
				wake, err := transcript.NotifyWrites(ctx, path, slog.Default())
				if err != nil {
					slog.Warn("file notifications unavailable, polling only", "error", err)
				} else {
					opts.Wake = wake
				}
			}

			w := transcript.NewWatcher(path, opts)
			p := newPrinter(os.Stdout, out)
			if err := w.Run(ctx, p.emit); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			slog.Debug("watch finished", "offset", w.Offset())
			return nil
		},
	}

	addOutputFlags(cmd, &out)
	cmd.Flags().StringVar(&matching, "matching", transcript.MatchFIFO, "tool matching strategy (fifo, id)")
	cmd.Flags().Int64Var(&fromOffset, "from-offset", 0, "byte offset to resume from; suppresses the init event")
	cmd.Flags().DurationVar(&interval, "interval", transcript.DefaultPollInterval, "poll interval")
	cmd.Flags().BoolVar(&notify, "notify", false, "wake on file change notifications between polls")
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file for resuming across runs")
	return cmd
}
