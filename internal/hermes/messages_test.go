package hermes

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

func TestWatchRequestParsing(t *testing.T) {
	raw := `{
		"path": "/home/agent/.claude/projects/demo/abc.jsonl",
		"from_offset": 2048,
		"resume": true,
		"slack": true
	}`

	var req WatchRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to parse WatchRequest: %v", err)
	}

	if req.Path != "/home/agent/.claude/projects/demo/abc.jsonl" {
		t.Errorf("unexpected path %q", req.Path)
	}
	if req.FromOffset != 2048 {
		t.Errorf("expected from_offset 2048, got %d", req.FromOffset)
	}
	if !req.Resume {
		t.Error("expected resume true")
	}
	if !req.Slack {
		t.Error("expected slack true")
	}
}

func TestWatchRequestDefaults(t *testing.T) {
	var req WatchRequest
	if err := json.Unmarshal([]byte(`{"path":"/tmp/s.jsonl"}`), &req); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if req.FromOffset != 0 || req.Resume || req.Slack {
		t.Errorf("expected zero defaults, got %+v", req)
	}
}

func TestCancelRequestParsing(t *testing.T) {
	var req CancelRequest
	if err := json.Unmarshal([]byte(`{"watch_id":"w-123"}`), &req); err != nil {
		t.Fatalf("failed to parse CancelRequest: %v", err)
	}
	if req.WatchID != "w-123" {
		t.Errorf("expected watch_id w-123, got %q", req.WatchID)
	}
}

func TestEventEnvelopeWireFormat(t *testing.T) {
	env := EventEnvelope{
		WatchID: "w1",
		Path:    "/tmp/s.jsonl",
		Event: transcript.Event{
			Kind:       transcript.EventToolComplete,
			Timestamp:  time.Date(2026, 2, 11, 10, 0, 4, 0, time.UTC),
			SessionID:  "s1",
			ToolName:   "Bash",
			ToolID:     "toolu_1",
			DurationMs: 3000,
		},
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"watch_id":"w1"`, `"kind":"tool_complete"`, `"tool_name":"Bash"`, `"duration_ms":3000`, `"session_id":"s1"`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}
	if strings.Contains(s, `"content"`) {
		t.Errorf("empty content should be omitted: %s", s)
	}
}

func TestActivityEnvelopeWireFormat(t *testing.T) {
	env := ActivityEnvelope{
		WatchID:  "w1",
		Path:     "/tmp/s.jsonl",
		Activity: activity.Entry{Kind: activity.KindGenerating, Content: "hi", Preview: "hi", CharCount: 2},
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"generating"`) {
		t.Errorf("unexpected payload %s", data)
	}
}
