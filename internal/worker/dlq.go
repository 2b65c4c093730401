package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the dead letter list of each queue: dlq:jobs:cierre_caja.
const DLQPrefix = "dlq:"

// DeadLetter is a job the pool gave up on, kept for manual inspection and replay.
type DeadLetter struct {
	Queue    string          `json:"queue"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// deadLetter parks a failed job. Failing to park it only loses the job, so errors are logged.
func (p *Pool) deadLetter(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DeadLetter{
		Queue:    queue,
		Type:     jobType,
		Error:    reason,
		Attempts: attempts,
		FailedAt: p.now().UTC(),
	}
	if json.Valid(payload) {
		entry.Payload = payload
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal entry")
		return
	}
	if err := p.rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Str("type", jobType).Msg("dlq: push failed, job lost")
		return
	}
	if p.metrics != nil {
		p.metrics.DeadLettered.WithLabelValues(queue, jobType).Inc()
	}
	log.Warn().
		Str("queue", queue).
		Str("type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("job moved to dead letter queue")
}

// Replay moves up to n dead letters of queue back onto queue, oldest first, and returns how
// many were moved. It stops at the first entry without a payload, which stays in the DLQ.
func Replay(ctx context.Context, rdb *redis.Client, queue string, n int) (int, error) {
	moved := 0
	for moved < n {
		raw, err := rdb.RPop(ctx, DLQPrefix+queue).Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil || len(dl.Payload) == 0 {
			// Put it back at the head of the list so it is not retried again in this pass.
			if perr := rdb.LPush(ctx, DLQPrefix+queue, raw).Err(); perr != nil {
				return moved, perr
			}
			return moved, nil
		}
		encoded, err := json.Marshal(Job{Type: dl.Type, Payload: dl.Payload})
		if err != nil {
			return moved, err
		}
		if err := rdb.LPush(ctx, queue, encoded).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
