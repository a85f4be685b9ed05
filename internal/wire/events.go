package wire

import "encoding/json"

// EventType discriminates the stream event union. The values are the exact
// `type` strings the provider puts on the wire.
type EventType string

const (
	EventMessageStart      EventType = "message_start"
	EventContentBlockStart EventType = "content_block_start"
	EventContentBlockDelta EventType = "content_block_delta"
	EventContentBlockStop  EventType = "content_block_stop"
	EventMessageDelta      EventType = "message_delta"
	EventMessageStop       EventType = "message_stop"
	EventPing              EventType = "ping"
	EventError             EventType = "error"
)

// Event is the closed union of provider stream events. Every concrete event
// type lives in this package; the decoder switches over them exhaustively.
type Event interface {
	Kind() EventType
}

// Usage carries token accounting. message_start reports input-side counts,
// message_delta reports the final output count.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// Citation is a source reference attached to a text block, either at
// block start or via a citations_delta.
type Citation struct {
	Type           string `json:"type"`
	URL            string `json:"url,omitempty"`
	Title          string `json:"title,omitempty"`
	CitedText      string `json:"cited_text,omitempty"`
	EncryptedIndex string `json:"encrypted_index,omitempty"`
	DocumentIndex  *int   `json:"document_index,omitempty"`
	DocumentTitle  string `json:"document_title,omitempty"`
	StartCharIndex *int   `json:"start_char_index,omitempty"`
	EndCharIndex   *int   `json:"end_char_index,omitempty"`
}

// ContentBlock is the wire shape carried by content_block_start. Which
// fields are populated depends on the block's type ("text", "thinking",
// "tool_use", "server_tool_use", or one of the *_tool_result kinds).
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Citations []Citation      `json:"citations,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Delta is the wire shape carried by content_block_delta. The Type field
// selects which of the other fields is meaningful.
type Delta struct {
	Type        string    `json:"type"` // text_delta | thinking_delta | input_json_delta | signature_delta | citations_delta
	Text        string    `json:"text,omitempty"`
	Thinking    string    `json:"thinking,omitempty"`
	PartialJSON string    `json:"partial_json,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	Citation    *Citation `json:"citation,omitempty"`
}

type MessageStart struct {
	Type    string `json:"type"`
	Message struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Role  string `json:"role"`
		Usage *Usage `json:"usage"`
	} `json:"message"`
}

type ContentBlockStart struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

type ContentBlockDelta struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta Delta  `json:"delta"`
}

type ContentBlockStop struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type MessageDelta struct {
	Type  string `json:"type"`
	Delta struct {
		StopReason   string  `json:"stop_reason"`
		StopSequence *string `json:"stop_sequence"`
	} `json:"delta"`
	Usage *Usage `json:"usage"`
}

type MessageStop struct {
	Type string `json:"type"`
}

type Ping struct {
	Type string `json:"type"`
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (MessageStart) Kind() EventType      { return EventMessageStart }
func (ContentBlockStart) Kind() EventType { return EventContentBlockStart }
func (ContentBlockDelta) Kind() EventType { return EventContentBlockDelta }
func (ContentBlockStop) Kind() EventType  { return EventContentBlockStop }
func (MessageDelta) Kind() EventType      { return EventMessageDelta }
func (MessageStop) Kind() EventType       { return EventMessageStop }
func (Ping) Kind() EventType              { return EventPing }
func (ErrorEvent) Kind() EventType        { return EventError }
