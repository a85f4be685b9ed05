package wire

import (
	"encoding/json"
	"fmt"
)

// envelope is used for type discrimination when the SSE frame carried no
// event: line.
type envelope struct {
	Type string `json:"type"`
}

// Decode maps one raw SSE data payload to its typed event. eventType comes
// from the frame's event: line; when empty, the payload's own "type" field
// is used instead. Unknown event types return (nil, nil) so callers can skip
// them without treating every new provider event as an error.
func Decode(eventType string, data []byte) (Event, error) {
	if eventType == "" {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("discriminate event: %w", err)
		}
		eventType = env.Type
	}

	switch EventType(eventType) {
	case EventMessageStart:
		var ev MessageStart
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode message_start: %w", err)
		}
		return ev, nil

	case EventContentBlockStart:
		var ev ContentBlockStart
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode content_block_start: %w", err)
		}
		return ev, nil

	case EventContentBlockDelta:
		var ev ContentBlockDelta
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode content_block_delta: %w", err)
		}
		return ev, nil

	case EventContentBlockStop:
		var ev ContentBlockStop
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode content_block_stop: %w", err)
		}
		return ev, nil

	case EventMessageDelta:
		var ev MessageDelta
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode message_delta: %w", err)
		}
		return ev, nil

	case EventMessageStop:
		return MessageStop{Type: eventType}, nil

	case EventPing:
		return Ping{Type: eventType}, nil

	case EventError:
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode error event: %w", err)
		}
		return ev, nil

	default:
		return nil, nil
	}
}
