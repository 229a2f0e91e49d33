// Package checkpoint persists how far each transcript has been consumed so a
// later watch can resume without replaying events.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultPath is where the file store keeps checkpoints unless configured.
const DefaultPath = "~/.scribe/checkpoints.json"

// Checkpoint records the consumed byte offset of one transcript.
type Checkpoint struct {
	Path      string    `json:"path"`
	WatchID   string    `json:"watch_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Offset    int64     `json:"offset"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store loads and saves checkpoints keyed by transcript path.
type Store interface {
	// Load returns nil, nil when no checkpoint exists for path.
	Load(ctx context.Context, path string) (*Checkpoint, error)
	Save(ctx context.Context, cp Checkpoint) error
	List(ctx context.Context) ([]Checkpoint, error)
}

// Merge applies next on top of the stored checkpoint prev. The offset never
// moves backwards and an empty session id keeps the stored one.
func Merge(prev *Checkpoint, next Checkpoint) Checkpoint {
	if prev == nil {
		return next
	}
	if next.Offset < prev.Offset {
		next.Offset = prev.Offset
	}
	if next.SessionID == "" {
		next.SessionID = prev.SessionID
	}
	return next
}

// ResumeOffset picks the offset a watch of path should start from given the
// requested offset from and the stored checkpoint cp. A checkpoint beyond the
// current end of the file, or for a file that cannot be read, is stale and
// ignored.
func ResumeOffset(cp *Checkpoint, from int64, path string) (offset int64, sessionID string, stale bool) {
	if cp == nil || cp.Offset <= from {
		return from, "", false
	}
	info, err := os.Stat(path)
	if err != nil || cp.Offset > info.Size() {
		return from, "", true
	}
	return cp.Offset, cp.SessionID, false
}

type fileState struct {
	Checkpoints map[string]Checkpoint `json:"checkpoints"`
}

// FileStore keeps all checkpoints in a single JSON file.
type FileStore struct {
	path string

	mu    sync.Mutex
	state fileState
}

// OpenFileStore loads path, or starts empty if it does not exist yet.
// A leading "~/" is expanded to the home directory.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultPath
	}
	p := expandHome(path)

	s := &FileStore{
		path:  p,
		state: fileState{Checkpoints: make(map[string]Checkpoint)},
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read checkpoints: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parse checkpoints: %w", err)
	}
	if s.state.Checkpoints == nil {
		s.state.Checkpoints = make(map[string]Checkpoint)
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context, path string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.state.Checkpoints[path]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// Save merges cp into the stored checkpoint for its path and rewrites the file.
func (s *FileStore) Save(_ context.Context, cp Checkpoint) error {
	if cp.Path == "" {
		return fmt.Errorf("save checkpoint: empty path")
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *Checkpoint
	if old, ok := s.state.Checkpoints[cp.Path]; ok {
		prev = &old
	}
	s.state.Checkpoints[cp.Path] = Merge(prev, cp)
	return s.flush()
}

// List returns all checkpoints ordered by path.
func (s *FileStore) List(_ context.Context) ([]Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Checkpoint, 0, len(s.state.Checkpoints))
	for _, cp := range s.state.Checkpoints {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// flush writes to a temp file and renames it over the target. Caller holds mu.
func (s *FileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoints: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoints: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoints: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
