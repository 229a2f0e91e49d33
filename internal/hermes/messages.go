package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

const (
	// SubjectSessionEvent carries every reconstructed session event.
	SubjectSessionEvent = "swarm.scribe.session.event"
	// SubjectActivity carries projected activity entries.
	SubjectActivity = "swarm.scribe.session.activity"
	// SubjectWatchRequest asks scribe to start watching a transcript.
	SubjectWatchRequest = "swarm.scribe.watch.request"
	// SubjectWatchCancel asks scribe to stop a watch.
	SubjectWatchCancel = "swarm.scribe.watch.cancel"
	// SubjectRegistered is published once on startup.
	SubjectRegistered = "swarm.agent.scribe.registered"
)

// EventEnvelope wraps a session event with the watch it came from.
type EventEnvelope struct {
	WatchID string           `json:"watch_id"`
	Path    string           `json:"path"`
	Event   transcript.Event `json:"event"`
}

// ActivityEnvelope wraps an activity entry with the watch it came from.
type ActivityEnvelope struct {
	WatchID  string         `json:"watch_id"`
	Path     string         `json:"path"`
	Activity activity.Entry `json:"activity"`
}

// WatchRequest is the payload of SubjectWatchRequest.
type WatchRequest struct {
	Path       string `json:"path"`
	FromOffset int64  `json:"from_offset,omitempty"`
	Resume     bool   `json:"resume,omitempty"`
	Slack      bool   `json:"slack,omitempty"`
}

// CancelRequest is the payload of SubjectWatchCancel.
type CancelRequest struct {
	WatchID string `json:"watch_id"`
}

// Registration is the payload of SubjectRegistered.
type Registration struct {
	AgentID   string    `json:"agent_id"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}
