// Package activity projects transcript events onto UI-facing activity entries.
package activity

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

// Kind is the closed set of activity entry kinds.
type Kind string

const (
	KindThinking     Kind = "thinking"
	KindToolStart    Kind = "tool_start"
	KindToolComplete Kind = "tool_complete"
	KindGenerating   Kind = "generating"
)

// DefaultPreviewChars is the preview length used by Project.
const DefaultPreviewChars = 500

const ellipsis = "..."

// Entry is a UI-facing view of one event.
type Entry struct {
	Kind       Kind      `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
	Content    string    `json:"content,omitempty"`
	Preview    string    `json:"preview,omitempty"`
	CharCount  int       `json:"char_count,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolID     string    `json:"tool_id,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// MarshalJSON keeps char_count on thinking and generating entries and
// duration_ms on tool_complete entries even when they are zero.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	out := struct {
		plain
		CharCount  *int   `json:"char_count,omitempty"`
		DurationMs *int64 `json:"duration_ms,omitempty"`
	}{plain: plain(e)}

	switch e.Kind {
	case KindThinking, KindGenerating:
		out.CharCount = &e.CharCount
	case KindToolComplete:
		out.DurationMs = &e.DurationMs
	}
	return json.Marshal(out)
}

// Projector maps events to entries. The zero value uses DefaultPreviewChars.
type Projector struct {
	previewChars int
}

// NewProjector returns a projector truncating previews to previewChars runes.
// Non-positive values select DefaultPreviewChars.
func NewProjector(previewChars int) *Projector {
	if previewChars <= 0 {
		previewChars = DefaultPreviewChars
	}
	return &Projector{previewChars: previewChars}
}

// PreviewChars returns the configured preview length.
func (p *Projector) PreviewChars() int {
	if p == nil || p.previewChars <= 0 {
		return DefaultPreviewChars
	}
	return p.previewChars
}

// Project returns the entry for ev, or false if ev has no UI representation.
func (p *Projector) Project(ev transcript.Event) (Entry, bool) {
	base := Entry{Timestamp: ev.Timestamp, SessionID: ev.SessionID}

	switch ev.Kind {
	case transcript.EventThinkingComplete:
		if ev.Content == "" {
			return Entry{}, false
		}
		base.Kind = KindThinking
		base.Content = ev.Content
		base.Preview = Preview(ev.Content, p.PreviewChars())
		base.CharCount = utf8.RuneCountInString(ev.Content)
		return base, true

	case transcript.EventToolStart:
		base.Kind = KindToolStart
		base.ToolName = ev.ToolName
		base.ToolID = ev.ToolID
		return base, true

	case transcript.EventToolComplete:
		base.Kind = KindToolComplete
		base.ToolName = ev.ToolName
		base.ToolID = ev.ToolID
		base.DurationMs = ev.DurationMs
		return base, true

	case transcript.EventText:
		if ev.CharCount <= 0 {
			return Entry{}, false
		}
		base.Kind = KindGenerating
		base.Content = ev.Content
		base.Preview = Preview(ev.Content, p.PreviewChars())
		base.CharCount = ev.CharCount
		return base, true
	}
	return Entry{}, false
}

// ProjectAll projects events in order, dropping those without an entry.
func (p *Projector) ProjectAll(events []transcript.Event) []Entry {
	out := make([]Entry, 0, len(events))
	for _, ev := range events {
		if e, ok := p.Project(ev); ok {
			out = append(out, e)
		}
	}
	return out
}

// Project projects ev with the default preview length.
func Project(ev transcript.Event) (Entry, bool) {
	var p Projector
	return p.Project(ev)
}

// Preview returns s unchanged if it has at most limit runes, otherwise its
// first limit runes followed by "...".
func Preview(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + ellipsis
		}
		n++
	}
	return s
}
