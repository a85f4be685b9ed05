// Package sse splits a raw byte stream into SSE frames. The parser is
// chunk-boundary safe: lines and frames may span any number of reads.
package sse

import (
	"bytes"
	"strings"
)

// Frame is one parsed SSE frame.
type Frame struct {
	Index     int    // ordinal within this stream
	EventType string // from the event: line, or inferred from the payload
	Data      string // raw JSON from the data: line
	RawBytes  int    // byte length of the data line including newline
}

// Parser carries state across chunks so partial lines are handled.
type Parser struct {
	buffer     []byte
	frameIndex int
	eventType  string // current event: field value
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseChunk consumes raw bytes and returns the frames completed by them.
func (p *Parser) ParseChunk(chunk []byte) []Frame {
	p.buffer = append(p.buffer, chunk...)
	var frames []Frame

	for {
		idx := bytes.IndexByte(p.buffer, '\n')
		if idx == -1 {
			break
		}

		line := string(p.buffer[:idx])
		p.buffer = p.buffer[idx+1:]
		line = strings.TrimRight(line, "\r")

		if line == "" {
			// Frame separator; the event type does not carry over.
			p.eventType = ""
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			p.eventType = strings.TrimSpace(line[7:])
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			data := line[6:]
			p.frameIndex++

			eventType := p.eventType
			if eventType == "" {
				eventType = inferEventType(data)
			}

			frames = append(frames, Frame{
				Index:     p.frameIndex,
				EventType: eventType,
				Data:      data,
				RawBytes:  len(line) + 1,
			})
		}
	}

	return frames
}

// inferEventType extracts the "type" field from the JSON payload without a
// full parse, for streams that omit the event: line.
func inferEventType(data string) string {
	idx := strings.Index(data, `"type"`)
	if idx == -1 {
		return ""
	}

	rest := data[idx+6:]
	rest = strings.TrimLeft(rest, " \t:")

	if len(rest) > 0 && rest[0] == '"' {
		end := strings.IndexByte(rest[1:], '"')
		if end >= 0 {
			return rest[1 : end+1]
		}
	}
	return ""
}
