package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSession = "s1"

func ts(sec int) string {
	return fmt.Sprintf("2026-02-11T10:%02d:%02dZ", sec/60, sec%60)
}

func at(sec int) time.Time {
	t, _ := time.Parse(time.RFC3339, ts(sec))
	return t
}

func userText(id string, sec int, text string) string {
	return fmt.Sprintf(`{"type":"user","uuid":%q,"sessionId":%q,"timestamp":%q,"message":{"role":"user","content":%q}}`,
		id, testSession, ts(sec), text)
}

func userBlocks(id string, sec int, blocks ...string) string {
	return fmt.Sprintf(`{"type":"user","uuid":%q,"sessionId":%q,"timestamp":%q,"message":{"role":"user","content":[%s]}}`,
		id, testSession, ts(sec), strings.Join(blocks, ","))
}

func assistant(id string, sec int, blocks ...string) string {
	return fmt.Sprintf(`{"type":"assistant","uuid":%q,"sessionId":%q,"timestamp":%q,"message":{"role":"assistant","content":[%s]}}`,
		id, testSession, ts(sec), strings.Join(blocks, ","))
}

func textBlock(text string) string {
	return fmt.Sprintf(`{"type":"text","text":%q}`, text)
}

func thinkingBlock(text string) string {
	return fmt.Sprintf(`{"type":"thinking","thinking":%q}`, text)
}

func toolUse(id, name string) string {
	return fmt.Sprintf(`{"type":"tool_use","id":%q,"name":%q,"input":{"command":"ls"}}`, id, name)
}

func toolResult(toolUseID string) string {
	return fmt.Sprintf(`{"type":"tool_result","tool_use_id":%q,"content":"ok","is_error":false}`, toolUseID)
}

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(joinLines(lines...)), 0o644))
	return path
}

func appendTranscript(t *testing.T, path string, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(data)
	require.NoError(t, err)
}

func joinLines(lines ...string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// processAll folds lines through a fresh state the way ReadAll does.
func processAll(state *State, lines ...string) []Event {
	var events []Event
	for _, e := range ParseLines([]byte(joinLines(lines...)), false).Entries {
		events = append(events, state.Process(e)...)
	}
	return events
}
