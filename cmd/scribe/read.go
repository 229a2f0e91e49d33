package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

func readCmd() *cobra.Command {
	var (
		out      outputOptions
		matching string
	)

	cmd := &cobra.Command{
		Use:   "read <transcript.jsonl>",
		Short: "Reconstruct the full event sequence of a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(os.Getenv("LOG_LEVEL"), os.Stderr, true)

			matcher, err := transcript.NewMatcher(matching)
			if err != nil {
				return err
			}
			events, err := transcript.ReadAllWith(args[0], matcher)
			if err != nil {
				return err
			}

			p := newPrinter(os.Stdout, out)
			for _, ev := range events {
				if err := p.emit(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}

	addOutputFlags(cmd, &out)
	cmd.Flags().StringVar(&matching, "matching", transcript.MatchFIFO, "tool matching strategy (fifo, id)")
	return cmd
}

func addOutputFlags(cmd *cobra.Command, out *outputOptions) {
	cmd.Flags().BoolVarP(&out.json, "json", "j", false, "always print NDJSON, even on a terminal")
	cmd.Flags().BoolVarP(&out.activity, "activity", "a", false, "print projected activity entries instead of raw events")
	cmd.Flags().IntVar(&out.previewChars, "preview", activity.DefaultPreviewChars, "activity preview length in characters")
}
