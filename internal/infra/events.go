package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subjects of the cash ledger events.
const (
	SubjectSessionOpened    = "caja.sesion.abierta"
	SubjectSessionClosed    = "caja.sesion.cerrada"
	SubjectSessionCancelled = "caja.sesion.cancelada"
	SubjectMovementRecorded = "caja.movimiento.registrado"
	SubjectMovementCanceled = "caja.movimiento.anulado"
	SubjectRegisterEmptied  = "caja.registradora.vaciada"
)

// EventPublisher announces committed ledger changes. Publishing is best effort; a failed
// publish never rolls back the change.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

// NATSPublisher publishes JSON events on a NATS connection.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to url. The connection reconnects on its own.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("labcaja-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats: reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", subject, err)
	}
	return p.nc.Publish(subject, data)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// NopPublisher discards every event. Used when NATS_URL is empty.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
