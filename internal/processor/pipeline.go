// Package processor runs the background decode pipeline: it reads the teed
// SSE byte stream, decodes it into typed messages, persists the results, and
// fans finalized messages out over JetStream.
package processor

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/claude-stream/internal/decode"
	"github.com/namikmesic/claude-stream/internal/jetstream"
	"github.com/namikmesic/claude-stream/internal/sse"
	"github.com/namikmesic/claude-stream/internal/storage"
	"github.com/rs/zerolog/log"
)

// Sink receives write jobs. *storage.BatchWriter satisfies it.
type Sink interface {
	Enqueue(storage.WriteJob)
}

// Publisher fans decoded messages out. *jetstream.Publisher satisfies it;
// tests substitute a fake. May be nil to disable fan-out.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Pipeline struct {
	sink Sink
	pub  Publisher
}

func New(sink Sink, pub Publisher) *Pipeline {
	return &Pipeline{sink: sink, pub: pub}
}

// ProcessStream consumes the decode side of a teed SSE response until EOF.
// It runs on its own goroutine per request; each request gets a fresh
// decoder, so concurrent streams share no state.
func (p *Pipeline) ProcessStream(requestID uuid.UUID, ts time.Time, reader io.Reader) {
	parser := sse.NewParser()
	dec := decode.New(decode.WithLogger(
		log.With().Str("request_id", requestID.String()).Logger(),
	))

	buf := make([]byte, 32*1024)
	var frames []sse.Frame

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := parser.ParseChunk(buf[:n])
			frames = append(frames, chunk...)

			for _, f := range chunk {
				for _, m := range dec.HandleRaw(f.EventType, []byte(f.Data)) {
					p.publish(requestID, m)
				}
			}
		}
		if err != nil {
			break
		}
	}

	p.finish(requestID, ts, frames, dec.Messages(), dec.Session())
}

// ProcessResponse handles a complete non-streaming response body, producing
// the same persisted rows and fan-out a streamed response would.
func (p *Pipeline) ProcessResponse(requestID uuid.UUID, ts time.Time, body []byte) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Debug().Err(err).Str("request_id", requestID.String()).Msg("unparsable response body")
		return
	}

	msgs := resp.Messages()
	for _, m := range msgs {
		p.publish(requestID, m)
	}

	p.finish(requestID, ts, nil, msgs, resp.Session())
}

func (p *Pipeline) finish(requestID uuid.UUID, ts time.Time, frames []sse.Frame, msgs []decode.Message, sess decode.Session) {
	if p.pub != nil {
		done, _ := json.Marshal(map[string]int64{"ts": ts.UnixNano()})
		if err := p.pub.Publish(jetstream.DoneSubject(requestID.String()), done); err != nil {
			log.Warn().Err(err).Msg("failed to publish done marker")
		}
	}

	if len(frames) > 0 {
		p.sink.Enqueue(storage.InsertFramesJob(requestID, ts, frames))
	}
	if len(msgs) > 0 {
		p.sink.Enqueue(storage.InsertMessagesJob(requestID, ts, msgs))
	}

	update := storage.UsageUpdate{
		Model:      sess.Model,
		MessageID:  sess.MessageID,
		StopReason: sess.StopReason,
	}
	if sess.Usage != nil {
		update.InputTokens = sess.Usage.InputTokens
		update.OutputTokens = sess.Usage.OutputTokens
		update.CacheReadTokens = sess.Usage.CacheReadTokens
		update.CacheCreationTokens = sess.Usage.CacheCreationTokens
	}
	if update.Model != "" || sess.Usage != nil {
		p.sink.Enqueue(storage.UpdateRequestUsageJob(requestID, ts, update))
	}

	log.Debug().
		Str("request_id", requestID.String()).
		Int("sse_frames", len(frames)).
		Int("messages", len(msgs)).
		Str("model", sess.Model).
		Str("stop_reason", sess.StopReason).
		Msg("decode pipeline complete")
}

func (p *Pipeline) publish(requestID uuid.UUID, m decode.Message) {
	if p.pub == nil {
		return
	}
	payload, err := json.Marshal(struct {
		Kind    string         `json:"kind"`
		Message decode.Message `json:"message"`
	}{Kind: string(m.MessageKind()), Message: m})
	if err != nil {
		return
	}
	subject := jetstream.MessageSubject(requestID.String(), string(m.MessageKind()))
	if err := p.pub.Publish(subject, payload); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to publish decoded message")
	}
}
