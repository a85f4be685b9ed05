package processor_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/namikmesic/claude-stream/internal/processor"
	"github.com/namikmesic/claude-stream/internal/storage"
)

type fakeSink struct {
	mu   sync.Mutex
	jobs []storage.WriteJob
}

func (f *fakeSink) Enqueue(j storage.WriteJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, j)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

type published struct {
	subject string
	data    []byte
}

type fakePub struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePub) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func (f *fakePub) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

const sampleStream = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_01\",\"model\":\"claude-sonnet-4-5\",\"role\":\"assistant\",\"usage\":{\"input_tokens\":10,\"output_tokens\":1}}}\n" +
	"\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n" +
	"\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n" +
	"\n" +
	"event: content_block_stop\n" +
	"data: {\"type\":\"content_block_stop\",\"index\":0}\n" +
	"\n" +
	"event: message_delta\n" +
	"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":5}}\n" +
	"\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n" +
	"\n"

func TestProcessStream(t *testing.T) {
	is := is.New(t)

	sink := &fakeSink{}
	pub := &fakePub{}
	p := processor.New(sink, pub)

	requestID := uuid.New()
	p.ProcessStream(requestID, time.Now(), strings.NewReader(sampleStream))

	// frames + decoded messages + usage update
	is.Equal(sink.count(), 3)

	msgs := pub.all()
	var kinds []string
	var sawDone bool
	for _, m := range msgs {
		if strings.HasSuffix(m.subject, ".done") {
			sawDone = true
			continue
		}
		var env struct {
			Kind string `json:"kind"`
		}
		is.NoErr(json.Unmarshal(m.data, &env))
		kinds = append(kinds, env.Kind)
		is.True(strings.Contains(m.subject, requestID.String()))
	}

	is.True(sawDone)
	is.Equal(kinds, []string{"text_delta", "text", "usage"})
}

func TestProcessStreamToleratesGarbage(t *testing.T) {
	is := is.New(t)

	sink := &fakeSink{}
	p := processor.New(sink, nil)

	stream := "data: this is not json\n\n" + sampleStream
	p.ProcessStream(uuid.New(), time.Now(), strings.NewReader(stream))

	// The bad frame is stored but decodes to nothing; the rest proceeds.
	is.Equal(sink.count(), 3)
}

func TestProcessResponse(t *testing.T) {
	is := is.New(t)

	sink := &fakeSink{}
	pub := &fakePub{}
	p := processor.New(sink, pub)

	body := `{
		"id": "msg_02",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 8, "output_tokens": 17},
		"content": [
			{"type": "text", "text": "Checking the weather."},
			{"type": "tool_use", "id": "toolu_01", "name": "get_weather", "input": {"city": "Berlin"}}
		]
	}`

	p.ProcessResponse(uuid.New(), time.Now(), []byte(body))

	// decoded messages + usage update, no frames for a non-streaming body
	is.Equal(sink.count(), 2)

	var kinds []string
	for _, m := range pub.all() {
		if strings.HasSuffix(m.subject, ".done") {
			continue
		}
		var env struct {
			Kind string `json:"kind"`
		}
		is.NoErr(json.Unmarshal(m.data, &env))
		kinds = append(kinds, env.Kind)
	}
	is.Equal(kinds, []string{"text", "tool_call", "usage"})
}

func TestProcessResponseUnparsableBody(t *testing.T) {
	is := is.New(t)

	sink := &fakeSink{}
	p := processor.New(sink, nil)

	p.ProcessResponse(uuid.New(), time.Now(), []byte("<html>bad gateway</html>"))
	is.Equal(sink.count(), 0)
}
