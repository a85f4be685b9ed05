package sse_test

import (
	"io"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/namikmesic/claude-stream/internal/sse"
)

func TestParseSingleFrame(t *testing.T) {
	is := is.New(t)
	p := sse.NewParser()

	frames := p.ParseChunk([]byte("event: message_start\ndata: {\"type\":\"message_start\"}\n\n"))
	is.Equal(len(frames), 1)
	is.Equal(frames[0].Index, 1)
	is.Equal(frames[0].EventType, "message_start")
	is.Equal(frames[0].Data, `{"type":"message_start"}`)
}

func TestFramesSplitAcrossChunks(t *testing.T) {
	is := is.New(t)
	p := sse.NewParser()

	stream := "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0}\n\nevent: ping\ndata: {\"type\":\"ping\"}\n\n"

	// Feed one byte at a time: no chunk boundary may corrupt a frame.
	var frames []sse.Frame
	for i := 0; i < len(stream); i++ {
		frames = append(frames, p.ParseChunk([]byte{stream[i]})...)
	}

	is.Equal(len(frames), 2)
	is.Equal(frames[0].EventType, "content_block_delta")
	is.Equal(frames[1].EventType, "ping")
	is.Equal(frames[1].Index, 2)
}

func TestEventTypeInferredFromPayload(t *testing.T) {
	is := is.New(t)
	p := sse.NewParser()

	frames := p.ParseChunk([]byte("data: {\"type\":\"message_stop\"}\n\n"))
	is.Equal(len(frames), 1)
	is.Equal(frames[0].EventType, "message_stop")
}

func TestEventTypeDoesNotLeakAcrossFrames(t *testing.T) {
	is := is.New(t)
	p := sse.NewParser()

	frames := p.ParseChunk([]byte("event: message_start\ndata: {\"type\":\"message_start\"}\n\ndata: {\"index\":1}\n\n"))
	is.Equal(len(frames), 2)
	is.Equal(frames[0].EventType, "message_start")
	// Second frame has no event: line and no type field; nothing to infer.
	is.Equal(frames[1].EventType, "")
}

func TestCRLFLines(t *testing.T) {
	is := is.New(t)
	p := sse.NewParser()

	frames := p.ParseChunk([]byte("event: ping\r\ndata: {\"type\":\"ping\"}\r\n\r\n"))
	is.Equal(len(frames), 1)
	is.Equal(frames[0].EventType, "ping")
	is.Equal(frames[0].Data, `{"type":"ping"}`)
}

func TestTeeBodyDeliversToBothSides(t *testing.T) {
	is := is.New(t)

	body := io.NopCloser(strings.NewReader("data: {\"type\":\"ping\"}\n\n"))
	clientReader, decodeReader := sse.TeeBody(body)

	done := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(decodeReader)
		done <- string(b)
	}()

	clientSide, err := io.ReadAll(clientReader)
	is.NoErr(err)
	is.Equal(string(clientSide), "data: {\"type\":\"ping\"}\n\n")
	is.Equal(<-done, "data: {\"type\":\"ping\"}\n\n")

	is.NoErr(clientReader.Close())
}
