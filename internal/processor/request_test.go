package processor_test

import (
	"testing"

	"github.com/matryer/is"
	"github.com/namikmesic/claude-stream/internal/processor"
)

func TestParseRequest(t *testing.T) {
	is := is.New(t)

	body := `{
		"model": "claude-sonnet-4-5",
		"max_tokens": 1024,
		"system": "You are terse.",
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [{"name": "get_weather", "description": "", "input_schema": {"type": "object"}}],
		"thinking": {"type": "enabled", "budget_tokens": 2048}
	}`

	parsed := processor.ParseRequest([]byte(body))
	is.Equal(parsed.SystemPrompt, "You are terse.")
	is.Equal(parsed.MaxTokens, 1024)
	is.Equal(parsed.MessageCount, 1)
	is.Equal(parsed.ToolCount, 1)
	is.Equal(parsed.ThinkingBudgetTokens, 2048)
}

func TestParseRequestSystemBlocks(t *testing.T) {
	is := is.New(t)

	body := `{
		"model": "claude-sonnet-4-5",
		"max_tokens": 16,
		"system": [
			{"type": "text", "text": "First."},
			{"type": "text", "text": "Second.", "cache_control": {"type": "ephemeral"}}
		],
		"messages": []
	}`

	parsed := processor.ParseRequest([]byte(body))
	is.Equal(parsed.SystemPrompt, "First.\nSecond.")
}

func TestParseRequestMalformed(t *testing.T) {
	is := is.New(t)
	is.Equal(processor.ParseRequest([]byte("nope")), processor.ParsedRequest{})
}
