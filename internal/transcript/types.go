package transcript

import (
	"encoding/json"
	"time"
)

// Entry roles kept by the parser. Every other record type is consumed and dropped.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockThinking   = "thinking"
)

// rawLine represents a single line from a JSONL transcript.
type rawLine struct {
	Type      string     `json:"type"`
	UUID      string     `json:"uuid"`
	SessionID string     `json:"sessionId"`
	Timestamp string     `json:"timestamp"`
	Message   rawMessage `json:"message"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Block is a single structured content block of a message.
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Content is the body of an entry: either plain text or an ordered list of blocks.
type Content struct {
	Plain  bool
	Text   string
	Blocks []Block
}

// Entry is one kept user or assistant line of a transcript.
type Entry struct {
	Role      string
	ID        string
	SessionID string
	Timestamp time.Time
	Content   Content
}

// decodeLine parses one non-empty line. A nil error means the line was a
// complete, well-formed record; keep reports whether it yields an Entry.
func decodeLine(line []byte) (entry Entry, keep bool, err error) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, false, err
	}

	if raw.Type != RoleUser && raw.Type != RoleAssistant {
		return Entry{}, false, nil
	}

	content, ok := decodeContent(raw.Message.Content)
	if !ok {
		return Entry{}, false, nil
	}

	ts, _ := time.Parse(time.RFC3339Nano, raw.Timestamp)
	return Entry{
		Role:      raw.Type,
		ID:        raw.UUID,
		SessionID: raw.SessionID,
		Timestamp: ts,
		Content:   content,
	}, true, nil
}

// decodeContent accepts a non-empty string or a non-empty block array.
func decodeContent(data json.RawMessage) (Content, bool) {
	if len(data) == 0 {
		return Content{}, false
	}

	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		if plain == "" {
			return Content{}, false
		}
		return Content{Plain: true, Text: plain}, true
	}

	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil || len(blocks) == 0 {
		return Content{}, false
	}
	return Content{Blocks: blocks}, true
}

// IsTurnStart reports whether user content is fresh human input rather than a
// tool result being delivered back into the conversation.
func IsTurnStart(c Content) bool {
	if c.Plain {
		return true
	}
	if len(c.Blocks) == 0 {
		return false
	}
	return c.Blocks[0].Type == BlockText
}
