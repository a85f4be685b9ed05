package processor

import (
	"encoding/json"

	"github.com/namikmesic/claude-stream/internal/decode"
	"github.com/namikmesic/claude-stream/internal/wire"
)

// Response mirrors a complete (non-streaming) Messages API response body.
type Response struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Role         string     `json:"role"`
	Content      []Block    `json:"content"`
	Model        string     `json:"model"`
	StopReason   string     `json:"stop_reason"` // "end_turn" | "max_tokens" | "tool_use" | "stop_sequence"
	StopSequence *string    `json:"stop_sequence"`
	Usage        wire.Usage `json:"usage"`
}

// Block is one content block of a complete response.
type Block struct {
	Type      string          `json:"type"` // "text" | "thinking" | "tool_use" | "server_tool_use" | "*_tool_result"
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Citations []wire.Citation `json:"citations,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Session maps the response envelope onto the same session snapshot the
// streaming decoder produces, so both paths feed identical storage rows.
func (r *Response) Session() decode.Session {
	return decode.Session{
		MessageID:  r.ID,
		Model:      r.Model,
		Role:       r.Role,
		StopReason: r.StopReason,
		Usage: &decode.TokenUsage{
			InputTokens:         r.Usage.InputTokens,
			OutputTokens:        r.Usage.OutputTokens,
			CacheCreationTokens: r.Usage.CacheCreationInputTokens,
			CacheReadTokens:     r.Usage.CacheReadInputTokens,
		},
	}
}

// Messages converts the response's content blocks into the finalized message
// forms a streamed response would have produced. Unknown block types are
// skipped.
func (r *Response) Messages() []decode.Message {
	sess := r.Session()
	meta := decode.Meta{MessageID: r.ID, Role: r.Role}

	var out []decode.Message
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			if b.Text == "" {
				continue
			}
			out = append(out, decode.Text{Meta: meta, Text: b.Text, Citations: b.Citations, Usage: sess.Usage})

		case "thinking":
			if b.Thinking == "" {
				continue
			}
			out = append(out, decode.Thinking{Meta: meta, Thinking: b.Thinking, Signature: b.Signature, Usage: sess.Usage})

		case "tool_use":
			out = append(out, decode.ToolCall{Meta: meta, ToolCallID: b.ID, Name: b.Name, Args: inputOrEmpty(b.Input), Usage: sess.Usage})

		case "server_tool_use":
			out = append(out, decode.ServerToolUse{Meta: meta, ToolUseID: b.ID, ToolName: b.Name, Input: inputOrEmpty(b.Input)})

		default:
			name, ok := decode.ToolNameForResult(b.Type)
			if !ok {
				continue
			}
			msg := decode.ServerToolResult{Meta: meta, ToolUseID: b.ToolUseID, ToolName: name, Content: b.Content}
			if isErr, code := decode.ResultError(b.Content); isErr {
				msg.IsError = true
				msg.ErrorCode = code
			}
			out = append(out, msg)
		}
	}

	if r.StopReason != "" && sess.Usage != nil {
		out = append(out, decode.Usage{
			Meta:        meta,
			TokenUsage:  *sess.Usage,
			TotalTokens: sess.Usage.Total(),
			StopReason:  r.StopReason,
		})
	}
	return out
}

func inputOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
