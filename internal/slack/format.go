package slack

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
)

// FormatThreadHeader is the parent message of a watch's activity thread.
func FormatThreadHeader(path, sessionID string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Watching session:* `%s`\n", filepath.Base(path))
	if sessionID != "" {
		fmt.Fprintf(&sb, "*Session ID:* %s\n", sessionID)
	}
	fmt.Fprintf(&sb, "*Path:* %s", path)
	return sb.String()
}

// FormatActivity renders one activity entry as a Slack mrkdwn line.
func FormatActivity(e activity.Entry) string {
	switch e.Kind {
	case activity.KindThinking:
		return fmt.Sprintf(":thought_balloon: _Thinking_ (%d chars)\n>%s", e.CharCount, quote(e.Preview))
	case activity.KindToolStart:
		return fmt.Sprintf(":hammer_and_wrench: Running *%s*", e.ToolName)
	case activity.KindToolComplete:
		return fmt.Sprintf(":white_check_mark: *%s* finished in %s", e.ToolName, formatDuration(e.DurationMs))
	case activity.KindGenerating:
		return fmt.Sprintf(":speech_balloon: %s", e.Preview)
	}
	return ""
}

// formatDuration renders milliseconds compactly, e.g. "850ms", "3.2s", "5m42s".
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Truncate(time.Second).String()
}

// quote keeps multi-line previews inside a single blockquote.
func quote(s string) string {
	return strings.ReplaceAll(s, "\n", "\n>")
}
