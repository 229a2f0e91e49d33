package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is used when WatchOptions.PollInterval is unset.
const DefaultPollInterval = 500 * time.Millisecond

// ErrWatcherStarted is returned by Run on a watcher that has already run.
var ErrWatcherStarted = errors.New("transcript: watcher already started")

// WatchOptions configures a live watch.
type WatchOptions struct {
	// FromOffset skips content an earlier reader already consumed. A non-zero
	// offset suppresses the synthetic init event.
	FromOffset   int64
	PollInterval time.Duration
	// Matcher must not be shared with another watcher. Nil selects FIFO.
	Matcher ToolMatcher
	// Wake, when non-nil, cuts the inter-poll wait short.
	Wake <-chan struct{}
	// OnAdvance is called with the new offset after each poll that consumed bytes.
	OnAdvance func(offset int64)
	Logger    *slog.Logger
}

// Watcher tails one transcript file. It runs at most once.
type Watcher struct {
	path    string
	opts    WatchOptions
	logger  *slog.Logger
	state   *State
	wake    <-chan struct{}
	resumed bool

	offset  atomic.Int64
	started atomic.Bool
}

// NewWatcher prepares a watch of path. Nothing is read until Run.
func NewWatcher(path string, opts WatchOptions) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FromOffset < 0 {
		opts.FromOffset = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state := NewState(opts.Matcher)
	state.Initialized = opts.FromOffset > 0

	w := &Watcher{
		path:    path,
		opts:    opts,
		logger:  logger.With("path", path),
		state:   state,
		wake:    opts.Wake,
		resumed: opts.FromOffset > 0,
	}
	w.offset.Store(opts.FromOffset)
	return w
}

// Offset returns the byte offset up to which the file has been consumed.
func (w *Watcher) Offset() int64 {
	return w.offset.Load()
}

// Run polls the file until ctx is cancelled, passing each event to emit in
// file order. On cancellation it emits a final turn_end for any open turn and
// returns nil. A read failure or an emit error ends the watch and is returned.
func (w *Watcher) Run(ctx context.Context, emit func(Event) error) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrWatcherStarted
	}

	w.logger.Debug("watch started", "offset", w.Offset(), "poll_interval", w.opts.PollInterval)

	for {
		if ctx.Err() != nil {
			return w.finish(emit)
		}
		if err := w.poll(emit); err != nil {
			w.logger.Warn("watch stopped on error", "offset", w.Offset(), "error", err)
			return err
		}
		if !w.wait(ctx) {
			return w.finish(emit)
		}
	}
}

// poll reads everything appended since the current offset and drains it into
// events before returning.
func (w *Watcher) poll(emit func(Event) error) error {
	offset := w.offset.Load()
	chunk, err := ReadSince(w.path, offset)
	if err != nil {
		return err
	}
	if len(chunk) == 0 {
		return nil
	}

	parsed := ParseLines(chunk, w.resumed)
	w.resumed = false

	if parsed.SkippedLeading {
		w.logger.Debug("skipped truncated leading line", "offset", offset)
	}
	if parsed.Malformed > 0 {
		w.logger.Warn("skipped malformed lines", "offset", offset, "count", parsed.Malformed)
	}

	for _, entry := range parsed.Entries {
		for _, ev := range w.state.Process(entry) {
			if err := emit(ev); err != nil {
				return fmt.Errorf("emit %s: %w", ev.Kind, err)
			}
		}
	}

	if parsed.Consumed > 0 {
		next := w.offset.Add(parsed.Consumed)
		if w.opts.OnAdvance != nil {
			w.opts.OnAdvance(next)
		}
	}
	return nil
}

// wait sleeps for the poll interval. It returns false if ctx is cancelled first.
func (w *Watcher) wait(ctx context.Context) bool {
	timer := time.NewTimer(w.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case _, ok := <-w.wake:
		if !ok {
			w.wake = nil
		}
		return ctx.Err() == nil
	}
}

func (w *Watcher) finish(emit func(Event) error) error {
	end, ok := w.state.Finish()
	if !ok {
		return nil
	}
	if err := emit(end); err != nil {
		return fmt.Errorf("emit %s: %w", end.Kind, err)
	}
	return nil
}
