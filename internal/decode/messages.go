package decode

import (
	"encoding/json"

	"github.com/namikmesic/claude-stream/internal/wire"
)

// MessageKind discriminates the output message union.
type MessageKind string

const (
	KindTextDelta        MessageKind = "text_delta"
	KindThinkingDelta    MessageKind = "thinking_delta"
	KindToolCallUpdate   MessageKind = "tool_call_update"
	KindText             MessageKind = "text"
	KindThinking         MessageKind = "thinking"
	KindToolCall         MessageKind = "tool_call"
	KindServerToolUse    MessageKind = "server_tool_use"
	KindServerToolResult MessageKind = "server_tool_result"
	KindUsage            MessageKind = "usage"
)

// Message is the closed union of decoder outputs. Delta kinds (TextDelta,
// ThinkingDelta, ToolCallUpdate) stream incrementally; the rest are final and
// are also retained in the decoder's history.
type Message interface {
	MessageKind() MessageKind
}

// Meta ties every output message back to its parent response.
type Meta struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
}

// TokenUsage is the session-level token accounting surfaced to callers.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
}

// Total is the sum of all token counts.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

// TextDelta carries one incremental text fragment, not the cumulative value.
type TextDelta struct {
	Meta
	Text string `json:"text"`
}

// ThinkingDelta carries one reasoning-trace fragment as received.
type ThinkingDelta struct {
	Meta
	Thinking string `json:"thinking"`
}

// ToolCallUpdate is a streaming, best-effort view of a tool invocation.
// PartialArgs is raw partial JSON and may be syntactically incomplete.
type ToolCallUpdate struct {
	Meta
	ToolCallID  string `json:"tool_call_id"`
	Name        string `json:"name"`
	PartialArgs string `json:"partial_args,omitempty"`
}

// Text is a finalized text block, optionally with citations.
type Text struct {
	Meta
	Text      string          `json:"text"`
	Citations []wire.Citation `json:"citations,omitempty"`
	Usage     *TokenUsage     `json:"usage,omitempty"`
}

// Thinking is a finalized reasoning block. The signature, when present, is
// kept for downstream verification.
type Thinking struct {
	Meta
	Thinking  string      `json:"thinking"`
	Signature string      `json:"signature,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// ToolCall is a finalized application-tool invocation. Args is JSON text;
// when the provider never produced a parseable input it is the raw buffer
// as received, or "{}".
type ToolCall struct {
	Meta
	ToolCallID string      `json:"tool_call_id"`
	Name       string      `json:"name"`
	Args       string      `json:"args"`
	Usage      *TokenUsage `json:"usage,omitempty"`
}

// ServerToolUse is a finalized provider-executed tool invocation.
type ServerToolUse struct {
	Meta
	ToolUseID string `json:"tool_use_id"`
	ToolName  string `json:"tool_name"`
	Input     string `json:"input"`
}

// ServerToolResult is the result of a provider-executed tool.
type ServerToolResult struct {
	Meta
	ToolUseID string          `json:"tool_use_id"`
	ToolName  string          `json:"tool_name"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// Usage reports final token accounting once the provider has sent both a
// stop reason and usage figures.
type Usage struct {
	Meta
	TokenUsage
	TotalTokens int    `json:"total_tokens"`
	StopReason  string `json:"stop_reason,omitempty"`
}

func (TextDelta) MessageKind() MessageKind        { return KindTextDelta }
func (ThinkingDelta) MessageKind() MessageKind    { return KindThinkingDelta }
func (ToolCallUpdate) MessageKind() MessageKind   { return KindToolCallUpdate }
func (Text) MessageKind() MessageKind             { return KindText }
func (Thinking) MessageKind() MessageKind         { return KindThinking }
func (ToolCall) MessageKind() MessageKind         { return KindToolCall }
func (ServerToolUse) MessageKind() MessageKind    { return KindServerToolUse }
func (ServerToolResult) MessageKind() MessageKind { return KindServerToolResult }
func (Usage) MessageKind() MessageKind            { return KindUsage }

// isFinal reports whether a message belongs in the decoder's history.
func isFinal(m Message) bool {
	switch m.MessageKind() {
	case KindTextDelta, KindThinkingDelta, KindToolCallUpdate:
		return false
	}
	return true
}
