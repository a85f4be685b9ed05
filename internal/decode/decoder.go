// Package decode turns provider stream events into typed application
// messages. One Decoder instance owns the state of one in-flight response;
// it performs no I/O and is not safe for concurrent use; run one instance
// per stream.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/namikmesic/claude-stream/internal/partialjson"
	"github.com/namikmesic/claude-stream/internal/wire"
	"github.com/rs/zerolog"
)

// block is the mutable per-index state of one open content block.
type block struct {
	index      int
	kind       string // wire content_block type
	text       string
	id         string
	name       string
	startInput json.RawMessage
	acc        partialjson.Accumulator
	citations  []wire.Citation
	signature  string
	consumed   bool // tool_use_id already claimed by a result block
}

// serverToolRef outlives its block so result blocks arriving after
// content_block_stop can still correlate.
type serverToolRef struct {
	id       string
	name     string
	consumed bool
}

// Decoder is the stream state machine. Create one per response with New.
type Decoder struct {
	log   zerolog.Logger
	newID func() string

	blocks      map[int]*block
	serverTools []*serverToolRef
	history     []Message

	messageID  string
	model      string
	role       string
	stopReason string
	usage      *TokenUsage
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger routes decoder diagnostics to the given logger. The default
// discards them.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Decoder) { d.log = log }
}

// WithIDSource replaces the random id source used for synthetic tool-use
// ids. Tests pass a fixed source for deterministic output.
func WithIDSource(newID func() string) Option {
	return func(d *Decoder) { d.newID = newID }
}

func New(opts ...Option) *Decoder {
	d := &Decoder{
		log:    zerolog.Nop(),
		newID:  uuid.NewString,
		blocks: make(map[int]*block),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Session is a snapshot of the response-level state.
type Session struct {
	MessageID  string
	Model      string
	Role       string
	StopReason string
	Usage      *TokenUsage
}

func (d *Decoder) Session() Session {
	s := Session{
		MessageID:  d.messageID,
		Model:      d.model,
		Role:       d.role,
		StopReason: d.stopReason,
	}
	if d.usage != nil {
		u := *d.usage
		s.Usage = &u
	}
	return s
}

// Messages returns all finalized (non-delta) messages emitted so far, in
// emission order.
func (d *Decoder) Messages() []Message {
	out := make([]Message, len(d.history))
	copy(out, d.history)
	return out
}

// HandleRaw decodes one raw SSE data payload and dispatches it. Malformed
// payloads are skipped: the worst case for a bad event is no output.
func (d *Decoder) HandleRaw(eventType string, data []byte) []Message {
	ev, err := wire.Decode(eventType, data)
	if err != nil {
		d.log.Debug().Err(err).Str("event_type", eventType).Msg("skipping malformed event")
		return nil
	}
	if ev == nil {
		d.log.Debug().Str("event_type", eventType).Msg("skipping unknown event type")
		return nil
	}
	return d.Handle(ev)
}

// Handle dispatches one typed event, mutates decoder state, and returns the
// messages it produced, possibly none. Events must arrive in stream order.
func (d *Decoder) Handle(ev wire.Event) []Message {
	var out []Message
	switch e := ev.(type) {
	case wire.MessageStart:
		d.handleMessageStart(e)
	case wire.ContentBlockStart:
		out = d.handleBlockStart(e)
	case wire.ContentBlockDelta:
		out = d.handleBlockDelta(e)
	case wire.ContentBlockStop:
		out = d.handleBlockStop(e)
	case wire.MessageDelta:
		out = d.handleMessageDelta(e)
	case wire.MessageStop, wire.Ping:
		// Never produce output.
	case wire.ErrorEvent:
		d.log.Warn().
			Str("error_type", e.Error.Type).
			Str("message", e.Error.Message).
			Msg("provider stream error")
	case nil:
	default:
		d.log.Debug().Str("kind", string(ev.Kind())).Msg("unhandled event kind")
	}

	for _, m := range out {
		if isFinal(m) {
			d.history = append(d.history, m)
		}
	}
	return out
}

func (d *Decoder) handleMessageStart(e wire.MessageStart) {
	d.messageID = e.Message.ID
	d.model = e.Message.Model
	d.role = e.Message.Role
	if e.Message.Usage != nil {
		u := fromWireUsage(*e.Message.Usage)
		d.usage = &u
	}
}

func (d *Decoder) handleBlockStart(e wire.ContentBlockStart) []Message {
	cb := e.ContentBlock

	if name, ok := ToolNameForResult(cb.Type); ok {
		return d.emitServerToolResult(cb, name)
	}

	b := &block{index: e.Index, kind: cb.Type, id: cb.ID, name: cb.Name}
	switch cb.Type {
	case "text":
		b.text = cb.Text
		b.citations = cb.Citations
	case "thinking":
		b.text = cb.Thinking
		b.citations = cb.Citations
	case "tool_use", "server_tool_use":
		b.startInput = meaningfulInput(cb.Input)
	}
	d.blocks[e.Index] = b

	// A tool_use with a known id is surfaced right away so callers can show
	// the call before its arguments finish streaming. server_tool_use is
	// deferred to content_block_stop so the delta-accumulated input lands in
	// a single message.
	if cb.Type == "tool_use" && cb.ID != "" {
		return []Message{ToolCallUpdate{Meta: d.meta(), ToolCallID: cb.ID, Name: cb.Name}}
	}
	return nil
}

func (d *Decoder) handleBlockDelta(e wire.ContentBlockDelta) []Message {
	b, ok := d.blocks[e.Index]
	if !ok {
		// Deltas for an index we never saw opened: materialize a default
		// text block instead of failing, in case the start event was
		// dropped upstream.
		b = &block{index: e.Index, kind: "text"}
		d.blocks[e.Index] = b
		d.log.Debug().Int("index", e.Index).Msg("delta for unopened block, defaulting to text")
	}

	switch e.Delta.Type {
	case "text_delta":
		b.text += e.Delta.Text
		return []Message{TextDelta{Meta: d.meta(), Text: e.Delta.Text}}

	case "thinking_delta":
		// Reasoning deltas are cumulative snapshots, not increments.
		b.text = e.Delta.Thinking
		return []Message{ThinkingDelta{Meta: d.meta(), Thinking: e.Delta.Thinking}}

	case "input_json_delta":
		b.acc.AddFragment(e.Delta.PartialJSON)
		if b.kind == "tool_use" && b.id != "" {
			return []Message{ToolCallUpdate{
				Meta:        d.meta(),
				ToolCallID:  b.id,
				Name:        b.name,
				PartialArgs: e.Delta.PartialJSON,
			}}
		}
		return nil

	case "signature_delta":
		b.signature += e.Delta.Signature
		return nil

	case "citations_delta":
		if e.Delta.Citation != nil {
			b.citations = append(b.citations, *e.Delta.Citation)
		}
		return nil

	default:
		d.log.Debug().Str("delta_type", e.Delta.Type).Msg("unknown delta type")
		return nil
	}
}

func (d *Decoder) handleBlockStop(e wire.ContentBlockStop) []Message {
	b, ok := d.blocks[e.Index]
	if !ok {
		// The matching start may have been dropped upstream.
		return nil
	}
	delete(d.blocks, e.Index)

	switch b.kind {
	case "tool_use":
		return []Message{ToolCall{
			Meta:       d.meta(),
			ToolCallID: b.id,
			Name:       b.name,
			Args:       finalInput(b),
			Usage:      d.usageSnapshot(),
		}}

	case "server_tool_use":
		if b.id == "" {
			// Some providers omit ids for built-in tools.
			b.id = fmt.Sprintf("srvtoolu_synth_%d_%s", b.index, d.newID())
		}
		d.serverTools = append(d.serverTools, &serverToolRef{id: b.id, name: b.name, consumed: b.consumed})
		return []Message{ServerToolUse{
			Meta:      d.meta(),
			ToolUseID: b.id,
			ToolName:  b.name,
			Input:     finalInput(b),
		}}

	case "text":
		if b.text == "" {
			return nil
		}
		return []Message{Text{
			Meta:      d.meta(),
			Text:      b.text,
			Citations: b.citations,
			Usage:     d.usageSnapshot(),
		}}

	case "thinking":
		if b.text == "" {
			return nil
		}
		return []Message{Thinking{
			Meta:      d.meta(),
			Thinking:  b.text,
			Signature: b.signature,
			Usage:     d.usageSnapshot(),
		}}

	default:
		return nil
	}
}

func (d *Decoder) handleMessageDelta(e wire.MessageDelta) []Message {
	if e.Delta.StopReason != "" {
		d.stopReason = e.Delta.StopReason
	}
	if e.Usage != nil {
		if d.usage == nil {
			d.usage = &TokenUsage{}
		}
		mergeUsage(d.usage, *e.Usage)
	}

	if e.Delta.StopReason != "" && e.Usage != nil {
		u := *d.usage
		return []Message{Usage{
			Meta:        d.meta(),
			TokenUsage:  u,
			TotalTokens: u.Total(),
			StopReason:  d.stopReason,
		}}
	}
	return nil
}

func (d *Decoder) emitServerToolResult(cb wire.ContentBlock, toolName string) []Message {
	msg := ServerToolResult{
		Meta:      d.meta(),
		ToolUseID: d.resolveToolUseID(cb.ToolUseID, toolName),
		ToolName:  toolName,
		Content:   cb.Content,
	}
	if isErr, code := ResultError(cb.Content); isErr {
		msg.IsError = true
		msg.ErrorCode = code
	}
	return []Message{msg}
}

// resolveToolUseID links a result block to the invocation that produced it.
// The id assigned to the invocation block wins over the candidate carried by
// the result event, even when the candidate is non-empty: the request-side
// echo of this result must use the id the provider knows the invocation by.
func (d *Decoder) resolveToolUseID(candidate, toolName string) string {
	idxs := make([]int, 0, len(d.blocks))
	for i := range d.blocks {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	for _, i := range idxs {
		b := d.blocks[i]
		if b.kind == "server_tool_use" && b.name == toolName && !b.consumed && b.id != "" {
			b.consumed = true
			return b.id
		}
	}

	for _, ref := range d.serverTools {
		if ref.name == toolName && !ref.consumed {
			ref.consumed = true
			return ref.id
		}
	}

	d.log.Debug().
		Str("tool_name", toolName).
		Str("candidate_id", candidate).
		Msg("no matching server_tool_use block for result, keeping candidate id")
	return candidate
}

func (d *Decoder) meta() Meta {
	return Meta{MessageID: d.messageID, Role: d.role}
}

func (d *Decoder) usageSnapshot() *TokenUsage {
	if d.usage == nil {
		return nil
	}
	u := *d.usage
	return &u
}

// finalInput resolves a tool block's arguments. Input captured at block
// start is authoritative only when the accumulator never parsed anything;
// beyond that the raw buffer, then "{}", keep finalization from ever failing.
func finalInput(b *block) string {
	_, parsed := b.acc.Parsed()
	if !parsed && len(b.startInput) > 0 {
		return string(b.startInput)
	}
	if v, ok := b.acc.Parsed(); ok {
		if raw, err := json.Marshal(v); err == nil {
			return string(raw)
		}
	}
	if raw := b.acc.Raw(); raw != "" {
		return raw
	}
	return "{}"
}

// meaningfulInput filters out the empty placeholders providers send at
// tool_use block start, so they never shadow delta-accumulated input.
func meaningfulInput(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

// ToolNameForResult maps a *_tool_result block type to the server tool
// name it belongs to.
func ToolNameForResult(blockType string) (string, bool) {
	switch blockType {
	case "bash_code_execution_tool_result":
		return "bash_code_execution", true
	case "text_editor_code_execution_tool_result":
		return "text_editor_code_execution", true
	}
	if name, ok := strings.CutSuffix(blockType, "_tool_result"); ok && name != "" {
		return name, true
	}
	return "", false
}

// ResultError reports whether a result payload is an error object, i.e. an
// object whose type field ends in "_error".
func ResultError(content json.RawMessage) (bool, string) {
	var payload struct {
		Type      string `json:"type"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(content, &payload); err != nil {
		return false, ""
	}
	if strings.HasSuffix(payload.Type, "_error") {
		return true, payload.ErrorCode
	}
	return false, ""
}

func fromWireUsage(u wire.Usage) TokenUsage {
	return TokenUsage{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
	}
}

// mergeUsage folds message_delta usage into the session counts. The delta
// typically carries only the final output count; zero fields never clobber
// counts set at message_start.
func mergeUsage(dst *TokenUsage, u wire.Usage) {
	if u.InputTokens > 0 {
		dst.InputTokens = u.InputTokens
	}
	if u.OutputTokens > 0 {
		dst.OutputTokens = u.OutputTokens
	}
	if u.CacheCreationInputTokens > 0 {
		dst.CacheCreationTokens = u.CacheCreationInputTokens
	}
	if u.CacheReadInputTokens > 0 {
		dst.CacheReadTokens = u.CacheReadInputTokens
	}
}
