package worker

// email_worker.go
// Sends closing reports by email.

import (
	"context"
	"encoding/json"
	"fmt"

	"labcaja/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path"`
}

// ReportMailer is the part of infra.Mailer the worker needs.
type ReportMailer interface {
	SendReport(to, subject, body, pdfPath string) error
}

var _ ReportMailer = (*infra.Mailer)(nil)

type EmailWorker struct {
	mailer ReportMailer
}

func NewEmailWorker(mailer ReportMailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends the email, retrying with backoff.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	err := withRetry(ctx, maxAttempts, func(attempt int) error {
		err := w.mailer.SendReport(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Str("to", payload.ToEmail).Msg("email_worker: send failed")
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("email_worker: %w", err)
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: report sent")
	return nil
}
