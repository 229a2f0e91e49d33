package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

// printer writes events as NDJSON, or as one human-readable line each when
// stdout is a terminal.
type printer struct {
	out       io.Writer
	enc       *json.Encoder
	human     bool
	activity  bool
	projector *activity.Projector
}

type outputOptions struct {
	json         bool
	activity     bool
	previewChars int
}

func newPrinter(out io.Writer, opts outputOptions) *printer {
	human := !opts.json && isTerminal(out)
	return &printer{
		out:       out,
		enc:       json.NewEncoder(out),
		human:     human,
		activity:  opts.activity,
		projector: activity.NewProjector(opts.previewChars),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// emit matches the watcher's callback signature.
func (p *printer) emit(ev transcript.Event) error {
	if p.activity {
		entry, ok := p.projector.Project(ev)
		if !ok {
			return nil
		}
		if p.human {
			_, err := fmt.Fprintln(p.out, formatEntry(entry))
			return err
		}
		return p.enc.Encode(entry)
	}
	if p.human {
		_, err := fmt.Fprintln(p.out, formatEvent(ev))
		return err
	}
	return p.enc.Encode(ev)
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}

func formatEvent(ev transcript.Event) string {
	var detail string
	switch ev.Kind {
	case transcript.EventInit:
		detail = "session " + ev.SessionID
	case transcript.EventThinkingComplete:
		detail = fmt.Sprintf("(%d chars)", len([]rune(ev.Content)))
	case transcript.EventToolStart:
		detail = ev.ToolName
	case transcript.EventToolComplete:
		detail = fmt.Sprintf("%s in %s", ev.ToolName, millis(ev.DurationMs))
	case transcript.EventText:
		detail = fmt.Sprintf("(%d chars) %s", ev.CharCount, oneLine(activity.Preview(ev.Content, 120)))
	case transcript.EventTurnEnd:
		detail = "after " + millis(ev.DurationMs)
	}
	return strings.TrimRight(fmt.Sprintf("%s  %-17s %s", clock(ev.Timestamp), ev.Kind, detail), " ")
}

func formatEntry(e activity.Entry) string {
	var detail string
	switch e.Kind {
	case activity.KindThinking, activity.KindGenerating:
		detail = oneLine(e.Preview)
	case activity.KindToolStart:
		detail = e.ToolName
	case activity.KindToolComplete:
		detail = fmt.Sprintf("%s in %s", e.ToolName, millis(e.DurationMs))
	}
	return fmt.Sprintf("%s  %-13s %s", clock(e.Timestamp), e.Kind, detail)
}

func millis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
