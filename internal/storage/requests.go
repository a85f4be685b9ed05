package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequestRecord struct {
	ID                   uuid.UUID
	Timestamp            time.Time
	Method               string
	Path                 string
	StatusCode           int
	Success              bool
	ErrorMessage         string
	ResponseTimeMs       int
	IsStream             bool
	ToolCount            int
	ThinkingBudgetTokens int
}

// UsageUpdate carries the session state extracted by the decoder once a
// stream (or non-streaming body) has been fully processed.
type UsageUpdate struct {
	Model               string
	MessageID           string
	StopReason          string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

func (u UsageUpdate) totalTokens() int {
	return u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheCreationTokens
}

func InsertRequestJob(r *RequestRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO requests (
				id, ts, method, path, status_code, success, error_message,
				response_time_ms, is_stream, tool_count, thinking_budget_tokens
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			r.ID, r.Timestamp, r.Method, r.Path,
			r.StatusCode, r.Success, nilIfEmpty(r.ErrorMessage),
			r.ResponseTimeMs, r.IsStream, r.ToolCount, r.ThinkingBudgetTokens,
		)
		return err
	})
}

func UpdateRequestUsageJob(requestID uuid.UUID, ts time.Time, u UsageUpdate) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			UPDATE requests SET
				model = COALESCE($1, model),
				message_id = COALESCE($2, message_id),
				stop_reason = COALESCE($3, stop_reason),
				input_tokens = $4,
				output_tokens = $5,
				cache_read_tokens = $6,
				cache_creation_tokens = $7,
				total_tokens = $8,
				success = TRUE
			WHERE id = $9 AND ts = $10`,
			nilIfEmpty(u.Model), nilIfEmpty(u.MessageID), nilIfEmpty(u.StopReason),
			u.InputTokens, u.OutputTokens, u.CacheReadTokens, u.CacheCreationTokens,
			u.totalTokens(), requestID, ts,
		)
		return err
	})
}

func InsertPayloadJob(requestID uuid.UUID, ts time.Time, reqHeaders, respHeaders map[string][]string, reqBody, respBody []byte) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		reqH, _ := json.Marshal(reqHeaders)
		respH, _ := json.Marshal(respHeaders)
		_, err := pool.Exec(ctx, `
			INSERT INTO request_payloads (request_id, ts, request_headers, request_body, response_headers, response_body)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			requestID, ts, reqH, nilIfEmptyBytes(reqBody), respH, nilIfEmptyBytes(respBody),
		)
		return err
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfEmptyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
