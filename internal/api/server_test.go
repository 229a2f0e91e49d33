package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/feed"
)

const testToken = "secret"

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := feed.NewManager(feed.Config{PollInterval: 10 * time.Millisecond, Root: root}, nil, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})
	return NewServer(8760, testToken, mgr, activity.NewProjector(10))
}

func do(srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func writeSession(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "session.jsonl")
	lines := `{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":"list files"}}
{"type":"assistant","uuid":"a1","sessionId":"s1","timestamp":"2026-02-11T10:00:01Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"Bash","input":{}}]}}
{"type":"user","uuid":"u2","sessionId":"s1","timestamp":"2026-02-11T10:00:03Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"a b"}]}}
{"type":"assistant","uuid":"a2","sessionId":"s1","timestamp":"2026-02-11T10:00:04Z","message":{"role":"assistant","content":[{"type":"text","text":"There are two files here."}]}}
`
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/api/v1/scribe/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "scribe" {
		t.Errorf("expected agent scribe, got %v", body["agent"])
	}
	if body["watches_running"] != float64(0) {
		t.Errorf("expected 0 running watches, got %v", body["watches_running"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, "")

	for _, header := range []string{"", "Bearer wrong", "secret"} {
		req := httptest.NewRequest("GET", "/api/v1/watches", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	h := BearerAuthMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("expected passthrough, got %d", w.Code)
	}
}

func TestTranscriptEvents(t *testing.T) {
	srv := newTestServer(t, "")
	path := writeSession(t, t.TempDir())

	w := do(srv, "GET", "/api/v1/transcripts/events?path="+path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Count  int `json:"count"`
		Events []struct {
			Kind       string `json:"kind"`
			DurationMs int64  `json:"duration_ms"`
		} `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	want := []string{"init", "tool_start", "tool_complete", "text", "turn_end"}
	if body.Count != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), body.Count)
	}
	for i, k := range want {
		if body.Events[i].Kind != k {
			t.Errorf("event %d: expected %s, got %s", i, k, body.Events[i].Kind)
		}
	}
	if body.Events[2].DurationMs != 2000 {
		t.Errorf("tool duration = %d, want 2000", body.Events[2].DurationMs)
	}
	if body.Events[4].DurationMs != 4000 {
		t.Errorf("turn duration = %d, want 4000", body.Events[4].DurationMs)
	}
}

func TestTranscriptEvents_MissingFile(t *testing.T) {
	srv := newTestServer(t, "")

	w := do(srv, "GET", "/api/v1/transcripts/events?path="+filepath.Join(t.TempDir(), "none.jsonl"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["count"] != float64(0) {
		t.Errorf("expected empty result, got %v", body["count"])
	}
}

func TestTranscriptEvents_BadPath(t *testing.T) {
	root := t.TempDir()
	srv := newTestServer(t, root)

	w := do(srv, "GET", "/api/v1/transcripts/events", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path: expected 400, got %d", w.Code)
	}

	w = do(srv, "GET", "/api/v1/transcripts/events?path=/etc/passwd", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("outside root: expected 403, got %d", w.Code)
	}
}

func TestTranscriptActivity(t *testing.T) {
	srv := newTestServer(t, "")
	path := writeSession(t, t.TempDir())

	w := do(srv, "GET", "/api/v1/transcripts/activity?path="+path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Count    int              `json:"count"`
		Activity []activity.Entry `json:"activity"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Count != 3 {
		t.Fatalf("expected 3 entries, got %d", body.Count)
	}
	gen := body.Activity[2]
	if gen.Kind != activity.KindGenerating {
		t.Errorf("expected generating, got %s", gen.Kind)
	}
	if gen.Preview != "There are ..." {
		t.Errorf("preview = %q", gen.Preview)
	}

	w = do(srv, "GET", "/api/v1/transcripts/activity?path="+path+"&preview=0", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad preview: expected 400, got %d", w.Code)
	}
}

func TestWatchLifecycle(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, dir)
	path := writeSession(t, dir)

	w := do(srv, "POST", "/api/v1/watches", feed.Request{Path: path})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var started feed.WatchInfo
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.ID == "" || started.Status != feed.StatusRunning {
		t.Fatalf("unexpected watch %+v", started)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w = do(srv, "GET", "/api/v1/watches/"+started.ID+"/events", nil)
		var body struct {
			Count int `json:"count"`
		}
		json.NewDecoder(w.Body).Decode(&body)
		if body.Count == 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watch produced %d events, want 4", body.Count)
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = do(srv, "GET", "/api/v1/watches", nil)
	var list struct {
		Count int `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if list.Count != 1 {
		t.Errorf("expected 1 watch, got %d", list.Count)
	}

	w = do(srv, "DELETE", "/api/v1/watches/"+started.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stopped feed.WatchInfo
	json.NewDecoder(w.Body).Decode(&stopped)
	if stopped.Status != feed.StatusStopped {
		t.Errorf("expected stopped, got %s", stopped.Status)
	}
	if stopped.Events != 5 {
		t.Errorf("expected 5 events including final turn_end, got %d", stopped.Events)
	}

	w = do(srv, "GET", "/api/v1/watches/"+started.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("stopped watch should still be inspectable, got %d", w.Code)
	}
}

func TestWatchErrors(t *testing.T) {
	root := t.TempDir()
	srv := newTestServer(t, root)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"unknown get", "GET", "/api/v1/watches/nope", nil, http.StatusNotFound},
		{"unknown delete", "DELETE", "/api/v1/watches/nope", nil, http.StatusNotFound},
		{"unknown events", "GET", "/api/v1/watches/nope/events", nil, http.StatusNotFound},
		{"outside root", "POST", "/api/v1/watches", feed.Request{Path: "/var/log/x.jsonl"}, http.StatusForbidden},
		{"missing path", "POST", "/api/v1/watches", feed.Request{}, http.StatusBadRequest},
		{"negative offset", "POST", "/api/v1/watches", feed.Request{Path: filepath.Join(root, "x.jsonl"), FromOffset: -5}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, tt.method, tt.target, tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest("POST", "/api/v1/watches", bytes.NewReader([]byte("{")))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", testToken))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: expected 400, got %d", w.Code)
	}
}
