package transcript

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// EventKind discriminates SessionEvent variants.
type EventKind string

const (
	EventInit             EventKind = "init"
	EventThinkingStart    EventKind = "thinking_start"
	EventThinkingComplete EventKind = "thinking_complete"
	EventToolStart        EventKind = "tool_start"
	EventToolComplete     EventKind = "tool_complete"
	EventText             EventKind = "text"
	EventTurnEnd          EventKind = "turn_end"
)

// Event is one semantic activity event reconstructed from a transcript.
// Fields not relevant to Kind are left zero.
type Event struct {
	Kind       EventKind `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
	Content    string    `json:"content,omitempty"`
	CharCount  int       `json:"char_count,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolID     string    `json:"tool_id,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// MarshalJSON always writes char_count on text events and
// duration_ms on tool_complete and turn_end events, zero included.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		CharCount  *int   `json:"char_count,omitempty"`
		DurationMs *int64 `json:"duration_ms,omitempty"`
	}{plain: plain(e)}

	switch e.Kind {
	case EventText:
		out.CharCount = &e.CharCount
	case EventToolComplete, EventTurnEnd:
		out.DurationMs = &e.DurationMs
	}
	return json.Marshal(out)
}

func textEvent(ts time.Time, content string) Event {
	return Event{
		Kind:      EventText,
		Timestamp: ts,
		Content:   content,
		CharCount: utf8.RuneCountInString(content),
	}
}

// millisBetween returns end-start in milliseconds, never negative.
func millisBetween(start, end time.Time) int64 {
	d := end.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}
