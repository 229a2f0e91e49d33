// Package feed runs live transcript watches and fans their events out to sinks.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/checkpoint"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

var (
	ErrWatchNotFound  = errors.New("watch not found")
	ErrPathNotAllowed = errors.New("path outside transcript root")
)

// DefaultHistory is how many recent events each watch retains for inspection.
const DefaultHistory = 200

// Status is the lifecycle state of a watch.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// Request describes a watch to start.
type Request struct {
	Path       string `json:"path"`
	FromOffset int64  `json:"from_offset,omitempty"`
	// Resume starts from the stored checkpoint when it is ahead of FromOffset.
	Resume bool `json:"resume,omitempty"`
	// Slack routes this watch's activity to the Slack sink, if configured.
	Slack bool `json:"slack,omitempty"`
}

// WatchInfo is a snapshot of one watch.
type WatchInfo struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	SessionID  string     `json:"session_id,omitempty"`
	FromOffset int64      `json:"from_offset"`
	Offset     int64      `json:"offset"`
	Events     int64      `json:"events"`
	Slack      bool       `json:"slack,omitempty"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
}

// Sink receives every event of the watches it is attached to.
type Sink interface {
	HandleEvent(ctx context.Context, info WatchInfo, ev transcript.Event) error
}

// watchCloser is implemented by sinks holding per-watch state.
type watchCloser interface {
	CloseWatch(watchID string)
}

// Config tunes the manager.
type Config struct {
	PollInterval time.Duration
	// Matching selects the tool matching strategy, "fifo" or "id".
	Matching string
	// Notify enables filesystem notifications to wake watches between polls.
	Notify bool
	// Root, when set, restricts watches to files beneath it.
	Root    string
	History int
}

type watch struct {
	info    WatchInfo
	sinks   []Sink
	recent  []transcript.Event
	cancel  context.CancelFunc
	done    chan struct{}
	watcher *transcript.Watcher
}

// Manager owns the set of running watches.
type Manager struct {
	cfg         Config
	checkpoints checkpoint.Store
	sinks       []Sink
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	slack   Sink
	watches map[string]*watch
}

// NewManager returns a manager. checkpoints may be nil to disable resume.
func NewManager(cfg Config, checkpoints checkpoint.Store, logger *slog.Logger, sinks ...Sink) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = transcript.DefaultPollInterval
	}
	if cfg.Matching == "" {
		cfg.Matching = transcript.MatchFIFO
	}
	if cfg.History <= 0 {
		cfg.History = DefaultHistory
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:         cfg,
		checkpoints: checkpoints,
		sinks:       sinks,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		watches:     make(map[string]*watch),
	}
}

// SetSlackSink sets the sink used by watches started with Slack enabled.
func (m *Manager) SetSlackSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slack = s
}

// ResolvePath returns the cleaned absolute form of path, enforcing the
// configured root.
func (m *Manager) ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if m.cfg.Root == "" {
		return abs, nil
	}
	root, err := filepath.Abs(m.cfg.Root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrPathNotAllowed)
	}
	return abs, nil
}

// Start begins a watch and returns its initial snapshot. ctx bounds only the
// setup; the watch runs until stopped or the manager shuts down.
func (m *Manager) Start(ctx context.Context, req Request) (WatchInfo, error) {
	if m.ctx.Err() != nil {
		return WatchInfo{}, fmt.Errorf("manager is shut down")
	}

	path, err := m.ResolvePath(req.Path)
	if err != nil {
		return WatchInfo{}, err
	}
	if req.FromOffset < 0 {
		return WatchInfo{}, fmt.Errorf("from_offset must not be negative")
	}

	matcher, err := transcript.NewMatcher(m.cfg.Matching)
	if err != nil {
		return WatchInfo{}, err
	}

	offset := req.FromOffset
	var sessionID string
	if req.Resume && m.checkpoints != nil {
		cp, err := m.checkpoints.Load(ctx, path)
		if err != nil {
			return WatchInfo{}, fmt.Errorf("load checkpoint: %w", err)
		}
		var stale bool
		offset, sessionID, stale = checkpoint.ResumeOffset(cp, offset, path)
		if stale {
			m.logger.Warn("checkpoint beyond end of file, ignoring", "path", path, "checkpoint", cp.Offset)
		}
	}

	id := uuid.NewString()
	logger := m.logger.With("watch_id", id, "path", path)
	wctx, cancel := context.WithCancel(m.ctx)

	var wake <-chan struct{}
	if m.cfg.Notify {
		ch, err := transcript.NotifyWrites(wctx, path, logger)
		if err != nil {
			logger.Warn("file notifications unavailable, polling only", "error", err)
		} else {
			wake = ch
		}
	}

	w := &watch{
		info: WatchInfo{
			ID:         id,
			Path:       path,
			SessionID:  sessionID,
			FromOffset: offset,
			Offset:     offset,
			Slack:      req.Slack,
			Status:     StatusRunning,
			StartedAt:  time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	w.watcher = transcript.NewWatcher(path, transcript.WatchOptions{
		FromOffset:   offset,
		PollInterval: m.cfg.PollInterval,
		Matcher:      matcher,
		Wake:         wake,
		OnAdvance:    func(off int64) { m.advance(wctx, w, off) },
		Logger:       logger,
	})

	m.mu.Lock()
	w.sinks = append([]Sink(nil), m.sinks...)
	if req.Slack && m.slack != nil {
		w.sinks = append(w.sinks, m.slack)
	}
	m.watches[id] = w
	info := w.info
	m.mu.Unlock()

	go m.run(wctx, w, logger)

	logger.Info("watch started", "from_offset", offset, "resume", req.Resume, "slack", req.Slack)
	return info, nil
}

func (m *Manager) run(ctx context.Context, w *watch, logger *slog.Logger) {
	defer close(w.done)

	err := w.watcher.Run(ctx, func(ev transcript.Event) error {
		m.deliver(ctx, w, ev, logger)
		return nil
	})
	// Releases the file notifier of a watch that ended on its own.
	w.cancel()

	for _, s := range w.sinks {
		if c, ok := s.(watchCloser); ok {
			c.CloseWatch(w.info.ID)
		}
	}

	now := time.Now().UTC()
	m.mu.Lock()
	w.info.Offset = w.watcher.Offset()
	w.info.StoppedAt = &now
	if err != nil {
		w.info.Status = StatusFailed
		w.info.Error = err.Error()
	} else {
		w.info.Status = StatusStopped
	}
	info := w.info
	m.mu.Unlock()

	if err != nil {
		logger.Error("watch failed", "offset", info.Offset, "events", info.Events, "error", err)
		return
	}
	logger.Info("watch stopped", "offset", info.Offset, "events", info.Events)
}

// deliver records ev and hands it to every sink. Sink failures are logged and
// do not stop the watch.
func (m *Manager) deliver(ctx context.Context, w *watch, ev transcript.Event, logger *slog.Logger) {
	m.mu.Lock()
	if w.info.SessionID == "" && ev.SessionID != "" {
		w.info.SessionID = ev.SessionID
	}
	w.info.Events++
	w.recent = append(w.recent, ev)
	if over := len(w.recent) - m.cfg.History; over > 0 {
		w.recent = append(w.recent[:0], w.recent[over:]...)
	}
	info := w.info
	m.mu.Unlock()

	// Final turn_end events arrive after cancellation and must still be delivered.
	sinkCtx := context.WithoutCancel(ctx)
	for _, s := range w.sinks {
		if err := s.HandleEvent(sinkCtx, info, ev); err != nil {
			logger.Warn("sink failed", "kind", ev.Kind, "sink", fmt.Sprintf("%T", s), "error", err)
		}
	}
}

func (m *Manager) advance(ctx context.Context, w *watch, offset int64) {
	m.mu.Lock()
	w.info.Offset = offset
	cp := checkpoint.Checkpoint{
		Path:      w.info.Path,
		WatchID:   w.info.ID,
		SessionID: w.info.SessionID,
		Offset:    offset,
	}
	m.mu.Unlock()

	if m.checkpoints == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.checkpoints.Save(saveCtx, cp); err != nil {
		m.logger.Warn("failed to save checkpoint", "watch_id", cp.WatchID, "path", cp.Path, "offset", offset, "error", err)
	}
}
