package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/hermes"
)

// HandleWatchRequest is the NATS handler for swarm.scribe.watch.request.
func (m *Manager) HandleWatchRequest(subject string, data []byte) {
	var req hermes.WatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.logger.Warn("failed to parse watch request", "subject", subject, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := m.Start(ctx, Request{
		Path:       req.Path,
		FromOffset: req.FromOffset,
		Resume:     req.Resume,
		Slack:      req.Slack,
	})
	if err != nil {
		m.logger.Error("watch request rejected", "path", req.Path, "error", err)
		return
	}
	m.logger.Info("watch requested over nats", "watch_id", info.ID, "path", info.Path)
}

// HandleCancelRequest is the NATS handler for swarm.scribe.watch.cancel.
func (m *Manager) HandleCancelRequest(subject string, data []byte) {
	var req hermes.CancelRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.logger.Warn("failed to parse cancel request", "subject", subject, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := m.Stop(ctx, req.WatchID); err != nil {
		m.logger.Warn("cancel request failed", "watch_id", req.WatchID, "error", err)
		return
	}
	m.logger.Info("watch cancelled over nats", "watch_id", req.WatchID)
}
