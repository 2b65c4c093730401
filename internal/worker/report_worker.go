package worker

// report_worker.go
// Processes closing report jobs from QueueClosingReport.
// Renders the session's closing PDF and enqueues it by email to the configured recipient.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"labcaja/internal/infra"
	"labcaja/internal/model"
	"labcaja/internal/money"
	"labcaja/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxAttempts = 3

// ClosingReportPayload is the job envelope sent to QueueClosingReport.
type ClosingReportPayload struct {
	SessionID string `json:"session_id"`
}

// ClosingReportWorker renders closing reports of closed sessions.
type ClosingReportWorker struct {
	repo        repository.CajaRepository
	dispatcher  *Dispatcher
	storagePath string
	recipient   string
	metrics     *infra.Metrics

	// render is swapped in tests.
	render func(*model.CashRegister, *model.CashSession, []model.Movement, string) (string, error)
}

// NewClosingReportWorker wires the report worker. An empty recipient disables the email step.
func NewClosingReportWorker(
	repo repository.CajaRepository,
	dispatcher *Dispatcher,
	storagePath string,
	recipient string,
	metrics *infra.Metrics,
) *ClosingReportWorker {
	return &ClosingReportWorker{
		repo:        repo,
		dispatcher:  dispatcher,
		storagePath: storagePath,
		recipient:   recipient,
		metrics:     metrics,
		render:      infra.GenerateClosingReportPDF,
	}
}

// Process handles a single closing report job:
//  1. Parse ClosingReportPayload
//  2. Fetch session, register and movements
//  3. Render the PDF (retried with backoff)
//  4. Enqueue the email job when a recipient is configured
func (w *ClosingReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ClosingReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		w.count("invalid")
		return fmt.Errorf("report_worker: invalid payload: %w", err)
	}
	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		w.count("invalid")
		return fmt.Errorf("report_worker: invalid session_id %q", payload.SessionID)
	}

	sess, err := w.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		w.count("failed")
		return fmt.Errorf("report_worker: session %s: %w", sessionID, err)
	}
	if sess.Status != model.SessionClosed {
		log.Warn().Str("session_id", payload.SessionID).Str("status", string(sess.Status)).Msg("report_worker: session not closed, skipping")
		w.count("skipped")
		return nil
	}
	reg, err := w.repo.FindRegister(ctx, sess.RegisterID)
	if err != nil {
		w.count("failed")
		return fmt.Errorf("report_worker: register %s: %w", sess.RegisterID, err)
	}
	movs, err := w.repo.ListMovements(ctx, sessionID)
	if err != nil {
		w.count("failed")
		return fmt.Errorf("report_worker: movements: %w", err)
	}

	var pdfPath string
	err = withRetry(ctx, maxAttempts, func(attempt int) error {
		p, err := w.render(reg, sess, movs, w.storagePath)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Str("session_id", payload.SessionID).Msg("report_worker: PDF attempt failed")
			return err
		}
		pdfPath = p
		return nil
	})
	if err != nil {
		w.count("failed")
		return fmt.Errorf("report_worker: pdf: %w", err)
	}
	log.Info().Str("pdf", pdfPath).Str("session_id", payload.SessionID).Msg("report_worker: PDF generated")

	if w.recipient != "" && w.dispatcher != nil {
		job := EmailJobPayload{
			ToEmail: w.recipient,
			Subject: fmt.Sprintf("Cierre de caja %s", reg.DisplayName),
			Body:    reportBody(reg, sess),
			PDFPath: pdfPath,
		}
		if err := w.dispatcher.EnqueueEmail(ctx, job); err != nil {
			log.Warn().Err(err).Str("to", w.recipient).Msg("report_worker: failed to enqueue email")
		}
	}
	w.count("ok")
	return nil
}

func (w *ClosingReportWorker) count(outcome string) {
	if w.metrics != nil {
		w.metrics.ReportJobs.WithLabelValues(outcome).Inc()
	}
}

func reportBody(reg *model.CashRegister, sess *model.CashSession) string {
	body := fmt.Sprintf("Caja: %s\nApertura: %s\n", reg.DisplayName, sess.OpenedAt.Format("02/01/2006 15:04"))
	if sess.ClosedAt != nil {
		body += fmt.Sprintf("Cierre: %s\n", sess.ClosedAt.Format("02/01/2006 15:04"))
	}
	if sess.FinalCash != nil {
		body += fmt.Sprintf("Declarado: %s\n", money.Format(*sess.FinalCash))
	}
	if sess.SystemAmount != nil {
		body += fmt.Sprintf("Sistema: %s\n", money.Format(*sess.SystemAmount))
	}
	if sess.Difference != nil {
		body += fmt.Sprintf("Diferencia: %s\n", money.Format(*sess.Difference))
	}
	return body
}

// withRetry calls fn up to attempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, attempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * retryUnit
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// retryUnit is the base backoff step; tests shrink it.
var retryUnit = time.Second
