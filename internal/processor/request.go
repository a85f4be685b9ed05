package processor

import (
	"encoding/json"
	"strings"
)

// Request mirrors the provider's Messages API request body, field-for-field.
type Request struct {
	Model         string          `json:"model"`
	Messages      []ReqMessage    `json:"messages"`
	System        json.RawMessage `json:"system"` // string OR []SystemBlock
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature"`
	TopP          *float64        `json:"top_p"`
	TopK          *int            `json:"top_k"`
	Stream        bool            `json:"stream"`
	Tools         []Tool          `json:"tools"`
	ToolChoice    json.RawMessage `json:"tool_choice"` // "auto" | "any" | {"type":"tool","name":"..."}
	StopSequences []string        `json:"stop_sequences"`
	Thinking      *ThinkingConfig `json:"thinking"`
	Metadata      json.RawMessage `json:"metadata"`
}

type ReqMessage struct {
	Role    string          `json:"role"`    // "user" | "assistant"
	Content json.RawMessage `json:"content"` // string OR []ContentBlock
}

type SystemBlock struct {
	Type         string        `json:"type"` // "text"
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control"`
}

type CacheControl struct {
	Type string `json:"type"` // "ephemeral"
}

type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type ThinkingConfig struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

// ParsedRequest is the subset of request state kept on the request record.
type ParsedRequest struct {
	SystemPrompt         string
	MaxTokens            int
	Temperature          *float64
	TopP                 *float64
	MessageCount         int
	ToolCount            int
	ThinkingBudgetTokens int
}

// ParseRequest returns a zero-value ParsedRequest on parse failure.
func ParseRequest(body []byte) ParsedRequest {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return ParsedRequest{}
	}

	var budget int
	if req.Thinking != nil {
		budget = req.Thinking.BudgetTokens
	}

	return ParsedRequest{
		SystemPrompt:         extractSystemPrompt(req.System),
		MaxTokens:            req.MaxTokens,
		Temperature:          req.Temperature,
		TopP:                 req.TopP,
		MessageCount:         len(req.Messages),
		ToolCount:            len(req.Tools),
		ThinkingBudgetTokens: budget,
	}
}

// extractSystemPrompt handles both string and []SystemBlock forms.
func extractSystemPrompt(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []SystemBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}
