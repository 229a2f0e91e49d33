package transcript

import (
	"fmt"
	"time"
)

// Tool matching strategies accepted by NewMatcher.
const (
	MatchFIFO = "fifo"
	MatchID   = "id"
)

// PendingTool is a tool invocation still waiting for its result.
type PendingTool struct {
	Name    string
	ID      string
	Started time.Time
}

// ToolMatcher pairs tool results with the invocations they complete.
type ToolMatcher interface {
	Push(call PendingTool)
	// Pop removes and returns the invocation completed by result.
	Pop(result Block) (PendingTool, bool)
	Len() int
}

// NewMatcher returns a fresh matcher for the named strategy. An empty name
// selects FIFO.
func NewMatcher(strategy string) (ToolMatcher, error) {
	switch strategy {
	case "", MatchFIFO:
		return NewFIFOMatcher(), nil
	case MatchID:
		return NewIDMatcher(), nil
	default:
		return nil, fmt.Errorf("unknown tool matching strategy %q", strategy)
	}
}

type fifoMatcher struct {
	queue []PendingTool
}

// NewFIFOMatcher pairs every result with the oldest pending invocation,
// ignoring tool_use ids entirely.
func NewFIFOMatcher() ToolMatcher {
	return &fifoMatcher{}
}

func (m *fifoMatcher) Push(call PendingTool) {
	m.queue = append(m.queue, call)
}

func (m *fifoMatcher) Pop(Block) (PendingTool, bool) {
	if len(m.queue) == 0 {
		return PendingTool{}, false
	}
	call := m.queue[0]
	m.queue = m.queue[1:]
	return call, true
}

func (m *fifoMatcher) Len() int {
	return len(m.queue)
}

type idMatcher struct {
	queue []PendingTool
}

// NewIDMatcher pairs a result with the invocation whose id equals the
// result's tool_use_id. Results without a known id fall back to FIFO.
func NewIDMatcher() ToolMatcher {
	return &idMatcher{}
}

func (m *idMatcher) Push(call PendingTool) {
	m.queue = append(m.queue, call)
}

func (m *idMatcher) Pop(result Block) (PendingTool, bool) {
	if len(m.queue) == 0 {
		return PendingTool{}, false
	}
	idx := 0
	if result.ToolUseID != "" {
		for i, call := range m.queue {
			if call.ID == result.ToolUseID {
				idx = i
				break
			}
		}
	}
	call := m.queue[idx]
	m.queue = append(m.queue[:idx], m.queue[idx+1:]...)
	return call, true
}

func (m *idMatcher) Len() int {
	return len(m.queue)
}
