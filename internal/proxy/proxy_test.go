package proxy_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/namikmesic/claude-stream/internal/config"
	"github.com/namikmesic/claude-stream/internal/processor"
	"github.com/namikmesic/claude-stream/internal/proxy"
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

type fakePub struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakePub) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakePub) sawDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subjects {
		if strings.HasSuffix(s, ".done") {
			return true
		}
	}
	return false
}

func newTestHandler(upstreamURL string) (*proxy.Handler, *fakeSink, *fakePub) {
	cfg := &config.Config{UpstreamBaseURL: upstreamURL}
	sink := &fakeSink{}
	pub := &fakePub{}
	return proxy.NewHandler(cfg, sink, processor.New(sink, pub)), sink, pub
}

const upstreamSSE = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_01\",\"model\":\"claude-sonnet-4-5\",\"role\":\"assistant\"}}\n" +
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
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n" +
	"\n"

func TestStreamingPassthrough(t *testing.T) {
	is := is.New(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range strings.SplitAfter(upstreamSSE, "\n\n") {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	handler, sink, pub := newTestHandler(upstream.URL)
	front := httptest.NewServer(handler)
	defer front.Close()

	resp, err := http.Post(front.URL+"/v1/messages", "application/json",
		strings.NewReader(`{"model":"claude-sonnet-4-5","max_tokens":64,"messages":[{"role":"user","content":"hi"}],"stream":true}`))
	is.NoErr(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	is.NoErr(err)

	// Bytes must pass through unmodified.
	is.Equal(string(body), upstreamSSE)
	is.Equal(resp.Header.Get("Content-Type"), "text/event-stream")

	// The decode pipeline runs in the background; wait for its done marker.
	deadline := time.After(2 * time.Second)
	for !pub.sawDone() {
		select {
		case <-deadline:
			t.Fatal("decode pipeline never published done marker")
		case <-time.After(10 * time.Millisecond):
		}
	}
	is.True(sink.count() >= 3) // request record + payloads + decode output
}

func TestNonStreamingPassthrough(t *testing.T) {
	is := is.New(t)

	const upstreamBody = `{"id":"msg_02","type":"message","role":"assistant","model":"claude-sonnet-4-5","stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":9},"content":[{"type":"text","text":"Hi."}]}`

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, upstreamBody)
	}))
	defer upstream.Close()

	handler, sink, pub := newTestHandler(upstream.URL)
	front := httptest.NewServer(handler)
	defer front.Close()

	resp, err := http.Post(front.URL+"/v1/messages", "application/json",
		strings.NewReader(`{"model":"claude-sonnet-4-5","max_tokens":64,"messages":[{"role":"user","content":"hi"}]}`))
	is.NoErr(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	is.NoErr(err)
	is.Equal(string(body), upstreamBody)

	deadline := time.After(2 * time.Second)
	for !pub.sawDone() {
		select {
		case <-deadline:
			t.Fatal("decode pipeline never published done marker")
		case <-time.After(10 * time.Millisecond):
		}
	}
	is.True(sink.count() >= 3)
}

func TestUpstreamFailureRecordsError(t *testing.T) {
	is := is.New(t)

	handler, sink, _ := newTestHandler("http://127.0.0.1:1") // nothing listens here
	front := httptest.NewServer(handler)
	defer front.Close()

	resp, err := http.Post(front.URL+"/v1/messages", "application/json", strings.NewReader(`{}`))
	is.NoErr(err)
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusBadGateway)
	is.Equal(sink.count(), 1) // the failed request record
}
