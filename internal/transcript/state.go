package transcript

import "time"

// State is the reconstruction state carried across entries, and across polls
// of a live watch. It is owned by a single reader and is not safe for
// concurrent use.
type State struct {
	Initialized bool
	SessionID   string
	Tools       ToolMatcher

	turnStart     time.Time
	lastAssistant time.Time
	turnOpen      bool
	answered      bool
}

// NewState returns a fresh state using tools for tool matching. A nil
// matcher selects FIFO.
func NewState(tools ToolMatcher) *State {
	if tools == nil {
		tools = NewFIFOMatcher()
	}
	return &State{Tools: tools}
}

// Process folds one entry into the state and returns the events it produces,
// in order.
func (s *State) Process(e Entry) []Event {
	var out []Event

	if !s.Initialized {
		s.Initialized = true
		s.SessionID = e.SessionID
		out = append(out, Event{Kind: EventInit, Timestamp: e.Timestamp})
	} else if s.SessionID == "" {
		s.SessionID = e.SessionID
	}

	switch e.Role {
	case RoleUser:
		out = s.processUser(e, out)
	case RoleAssistant:
		out = s.processAssistant(e, out)
	}

	for i := range out {
		out[i].SessionID = s.SessionID
	}
	return out
}

func (s *State) processUser(e Entry, out []Event) []Event {
	if IsTurnStart(e.Content) {
		if end, ok := s.turnEnd(); ok {
			out = append(out, end)
		}
		s.turnStart = e.Timestamp
		s.turnOpen = true
		s.lastAssistant = time.Time{}
		s.answered = false
		return out
	}

	for _, b := range e.Content.Blocks {
		if b.Type != BlockToolResult {
			continue
		}
		call, ok := s.Tools.Pop(b)
		if !ok {
			continue
		}
		out = append(out, Event{
			Kind:       EventToolComplete,
			Timestamp:  e.Timestamp,
			ToolName:   call.Name,
			ToolID:     call.ID,
			DurationMs: millisBetween(call.Started, e.Timestamp),
		})
	}
	return out
}

func (s *State) processAssistant(e Entry, out []Event) []Event {
	s.lastAssistant = e.Timestamp
	s.answered = true

	if e.Content.Plain {
		return append(out, textEvent(e.Timestamp, e.Content.Text))
	}

	for _, b := range e.Content.Blocks {
		switch b.Type {
		case BlockThinking:
			// Entries are only visible once fully written, so a thinking
			// block always starts and completes together.
			out = append(out,
				Event{Kind: EventThinkingStart, Timestamp: e.Timestamp},
				Event{Kind: EventThinkingComplete, Timestamp: e.Timestamp, Content: b.Thinking},
			)
		case BlockToolUse:
			s.Tools.Push(PendingTool{Name: b.Name, ID: b.ID, Started: e.Timestamp})
			out = append(out, Event{
				Kind:      EventToolStart,
				Timestamp: e.Timestamp,
				ToolName:  b.Name,
				ToolID:    b.ID,
			})
		case BlockText:
			if b.Text != "" {
				out = append(out, textEvent(e.Timestamp, b.Text))
			}
		}
	}
	return out
}

// turnEnd returns the turn_end event for the open turn, if it has had any
// assistant activity.
func (s *State) turnEnd() (Event, bool) {
	if !s.turnOpen || !s.answered {
		return Event{}, false
	}
	return Event{
		Kind:       EventTurnEnd,
		Timestamp:  s.lastAssistant,
		SessionID:  s.SessionID,
		DurationMs: millisBetween(s.turnStart, s.lastAssistant),
	}, true
}

// Finish closes any open turn and returns its synthetic turn_end. It returns
// false when no turn is open, including on repeated calls.
func (s *State) Finish() (Event, bool) {
	end, ok := s.turnEnd()
	s.turnOpen = false
	s.answered = false
	return end, ok
}
