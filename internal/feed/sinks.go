package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/slack"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

// Publisher is the subset of the hermes client used by PublishSink.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// PublishSink publishes every event, and every activity entry that projects
// from it, to the message bus.
type PublishSink struct {
	pub       Publisher
	projector *activity.Projector
}

func NewPublishSink(pub Publisher, projector *activity.Projector) *PublishSink {
	return &PublishSink{pub: pub, projector: projector}
}

func (s *PublishSink) HandleEvent(ctx context.Context, info WatchInfo, ev transcript.Event) error {
	if err := s.pub.Publish(ctx, hermes.SubjectSessionEvent, hermes.EventEnvelope{
		WatchID: info.ID,
		Path:    info.Path,
		Event:   ev,
	}); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	entry, ok := s.projector.Project(ev)
	if !ok {
		return nil
	}
	if err := s.pub.Publish(ctx, hermes.SubjectActivity, hermes.ActivityEnvelope{
		WatchID:  info.ID,
		Path:     info.Path,
		Activity: entry,
	}); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	return nil
}

// ThreadPoster is the subset of the Slack poster used by SlackSink.
type ThreadPoster interface {
	PostMessage(ctx context.Context, threadTS, text string) (string, error)
}

// SlackSink posts each watch's activity as replies in its own Slack thread.
// The thread is opened lazily on the first entry.
type SlackSink struct {
	poster    ThreadPoster
	projector *activity.Projector

	mu      sync.Mutex
	threads map[string]*slackThread // by watch id
}

// slackThread is the Slack thread of one watch. mu guards the header post.
type slackThread struct {
	mu sync.Mutex
	ts string
}

func NewSlackSink(poster ThreadPoster, projector *activity.Projector) *SlackSink {
	return &SlackSink{
		poster:    poster,
		projector: projector,
		threads:   make(map[string]*slackThread),
	}
}

func (s *SlackSink) HandleEvent(ctx context.Context, info WatchInfo, ev transcript.Event) error {
	entry, ok := s.projector.Project(ev)
	if !ok {
		return nil
	}

	threadTS, err := s.thread(ctx, info)
	if err != nil {
		return err
	}
	if _, err := s.poster.PostMessage(ctx, threadTS, slack.FormatActivity(entry)); err != nil {
		return fmt.Errorf("post activity: %w", err)
	}
	return nil
}

func (s *SlackSink) thread(ctx context.Context, info WatchInfo) (string, error) {
	s.mu.Lock()
	th, ok := s.threads[info.ID]
	if !ok {
		th = &slackThread{}
		s.threads[info.ID] = th
	}
	s.mu.Unlock()

	th.mu.Lock()
	defer th.mu.Unlock()
	if th.ts != "" {
		return th.ts, nil
	}
	ts, err := s.poster.PostMessage(ctx, "", slack.FormatThreadHeader(info.Path, info.SessionID))
	if err != nil {
		return "", fmt.Errorf("post thread header: %w", err)
	}
	th.ts = ts
	return ts, nil
}

// CloseWatch forgets the thread of a finished watch.
func (s *SlackSink) CloseWatch(watchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, watchID)
}
