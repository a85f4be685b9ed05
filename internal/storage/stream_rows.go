package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namikmesic/claude-stream/internal/decode"
	"github.com/namikmesic/claude-stream/internal/sse"
)

// InsertFramesJob batch-inserts raw SSE frames using the COPY protocol.
func InsertFramesJob(requestID uuid.UUID, ts time.Time, frames []sse.Frame) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		rows := make([][]interface{}, len(frames))
		for i, f := range frames {
			rows[i] = []interface{}{
				ts,
				requestID,
				f.Index,
				f.EventType,
				f.Data,
				f.RawBytes,
			}
		}

		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"sse_frames"},
			[]string{"ts", "request_id", "frame_index", "event_type", "data_json", "raw_bytes"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}

// InsertMessagesJob batch-inserts finalized decoded messages. Each message is
// stored as JSON alongside its kind and correlation fields so consumers can
// query by kind without unpacking payloads.
func InsertMessagesJob(requestID uuid.UUID, ts time.Time, msgs []decode.Message) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		rows := make([][]interface{}, 0, len(msgs))
		for seq, m := range msgs {
			payload, err := json.Marshal(m)
			if err != nil {
				continue
			}
			var meta struct {
				MessageID string `json:"message_id"`
				Role      string `json:"role"`
			}
			_ = json.Unmarshal(payload, &meta)

			rows = append(rows, []interface{}{
				ts,
				requestID,
				seq,
				string(m.MessageKind()),
				nilIfEmpty(meta.MessageID),
				nilIfEmpty(meta.Role),
				payload,
			})
		}

		if len(rows) == 0 {
			return nil
		}

		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"decoded_messages"},
			[]string{"ts", "request_id", "seq", "kind", "message_id", "role", "payload"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}
