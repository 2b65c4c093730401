package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"labcaja/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueClosingReport = "jobs:cierre_caja"
	QueueEmail         = "jobs:email"

	JobClosingReport = "cierre_caja"
	JobEmail         = "email"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes the payload of one job type. A returned error sends the job to the DLQ.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueClosingReport pushes a closing report job to Redis.
func (d *Dispatcher) EnqueueClosingReport(ctx context.Context, payload ClosingReportPayload) error {
	return d.enqueue(ctx, QueueClosingReport, JobClosingReport, payload)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	if err := d.rdb.LPush(ctx, queue, encoded).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return nil
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	metrics  *infra.Metrics
	now      func() time.Time
}

// NewPool builds a pool; metrics may be nil.
func NewPool(rdb *redis.Client, handlers map[string]Handler, metrics *infra.Metrics) *Pool {
	return &Pool{rdb: rdb, handlers: handlers, metrics: metrics, now: time.Now}
}

// Start launches numWorkers goroutines consuming every queue.
// Each goroutine blocks on BRPOP; zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

// popBackoff is the pause after a failed dequeue, so an unreachable Redis is not hammered.
var popBackoff = time.Second

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueClosingReport, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop; waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				log.Warn().Err(err).Int("worker", id).Msg("worker: dequeue failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(popBackoff):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.deadLetter(ctx, queue, "", json.RawMessage(raw), "invalid envelope: "+err.Error(), 0)
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		p.deadLetter(ctx, queue, job.Type, job.Payload, "no handler", 0)
		return
	}
	if err := h.Process(ctx, job.Payload); err != nil {
		log.Error().Err(err).Str("type", job.Type).Msg("job failed")
		p.deadLetter(ctx, queue, job.Type, job.Payload, err.Error(), maxAttempts)
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
}
