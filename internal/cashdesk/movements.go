package cashdesk

import (
	"context"
	"errors"
	"strings"

	"labcaja/internal/apierror"
	"labcaja/internal/client"
	"labcaja/internal/dto"
	"labcaja/internal/ledger"
	"labcaja/internal/model"
	"labcaja/internal/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MovementInput is what the operator enters for a deposit, withdrawal or liquidation deposit.
type MovementInput struct {
	PaymentMethod model.PaymentMethod
	Amount        decimal.Decimal
	Concept       string
	Observations  *string
	// Destination defaults to the session's own register.
	Destination model.Destination
	// FromClinicalAttention only applies to deposits.
	FromClinicalAttention bool
}

// Ledger records and reads movements of the tracked session. It never edits a movement
// returned by the backend.
type Ledger struct {
	*core
}

func (l *Ledger) RecordDeposit(ctx context.Context, in MovementInput) (*model.Movement, error) {
	return l.record(ctx, OpDeposit, in, "")
}

func (l *Ledger) RecordWithdrawal(ctx context.Context, in MovementInput) (*model.Movement, error) {
	in.FromClinicalAttention = false
	return l.record(ctx, OpWithdrawal, in, "")
}

// RecordLiquidationDeposit records a deposit that settles the liquidation identified by
// liquidationID.
func (l *Ledger) RecordLiquidationDeposit(ctx context.Context, in MovementInput, liquidationID string) (*model.Movement, error) {
	liquidationID = strings.TrimSpace(liquidationID)
	if liquidationID == "" {
		return nil, apierror.NewValidationError("La liquidación es obligatoria", nil)
	}
	return l.record(ctx, OpLiquidation, in, liquidationID)
}

func (l *Ledger) record(ctx context.Context, op Operation, in MovementInput, liquidationID string) (*model.Movement, error) {
	req, err := l.buildRequest(in)
	if err != nil {
		return nil, err
	}

	fp := fingerprint(req, liquidationID)
	release, err := l.guard.begin(op, fp)
	if err != nil {
		return nil, err
	}
	defer release()

	submission := string(op) + "|" + req.SessionID + "|" + fp
	ctx = client.WithIdempotencyKey(ctx, l.keys.acquire(submission))

	var resp *dto.MovementResponse
	switch op {
	case OpDeposit:
		resp, err = l.t.RecordDeposit(ctx, req)
	case OpWithdrawal:
		resp, err = l.t.RecordWithdrawal(ctx, req)
	case OpLiquidation:
		resp, err = l.t.RecordLiquidationDeposit(ctx, dto.LiquidationDepositRequest{MovementRequest: req, LiquidationID: liquidationID})
	}
	l.keys.settle(submission, err)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mov, err := movementFromDTO(resp)
	if err != nil {
		return nil, err
	}
	if !ledger.CheckRunningTotal(mov) {
		log.Warn().
			Str("movement_id", mov.ID.String()).
			Str("amount", mov.Amount.String()).
			Str("previous_amount", mov.PreviousAmount.String()).
			Str("new_amount", mov.NewAmount.String()).
			Msg("el movimiento recibido no respeta saldo anterior ± monto = saldo nuevo")
	}

	l.tok.invalidate(projMovements, projSummary)
	l.store.update(func(st *State) bool {
		if st.Current == nil || st.Current.ID != mov.SessionID {
			return false
		}
		st.Movements = append(st.Movements, mov)
		if st.MovementsComplete {
			sum := ledger.ComputeSummary(st.Current.InitialCash, st.Movements)
			st.Summary = &sum
		} else {
			st.Summary = nil
		}
		return true
	})
	return &mov, nil
}

// buildRequest runs every local check so nothing invalid reaches the transport.
func (l *Ledger) buildRequest(in MovementInput) (dto.MovementRequest, error) {
	if err := money.RequirePositive(in.Amount); err != nil {
		return dto.MovementRequest{}, apierror.NewValidationError(amountMessage(err), err)
	}
	concept := strings.TrimSpace(in.Concept)
	if concept == "" {
		return dto.MovementRequest{}, apierror.NewValidationError("El concepto es obligatorio", nil)
	}
	if _, err := model.ParsePaymentMethod(string(in.PaymentMethod)); err != nil {
		return dto.MovementRequest{}, apierror.NewValidationError("Medio de pago inválido", err)
	}
	dest := in.Destination
	if dest == "" {
		dest = model.BranchRegister
	}
	if _, err := model.ParseDestination(string(dest)); err != nil {
		return dto.MovementRequest{}, apierror.NewValidationError("Destino inválido", err)
	}

	cur := l.store.Snapshot().Current
	if !cur.IsOpen() {
		return dto.MovementRequest{}, ErrNoOpenSession
	}

	req := dto.MovementRequest{
		SessionID:             cur.ID.String(),
		PaymentMethod:         string(in.PaymentMethod),
		Amount:                in.Amount,
		Concept:               concept,
		Observations:          trimmed(in.Observations),
		Destination:           string(dest),
		FromClinicalAttention: in.FromClinicalAttention,
	}
	if err := dto.Validate(req); err != nil {
		return dto.MovementRequest{}, apierror.NewValidationError("Datos del movimiento inválidos", err)
	}
	return req, nil
}

func amountMessage(err error) string {
	if errors.Is(err, money.ErrPrecision) {
		return "El monto admite como máximo 2 decimales"
	}
	return "El monto debe ser mayor a cero"
}

// fingerprint identifies a logical submission; two different deposits may be in flight at
// once, the same one may not.
func fingerprint(req dto.MovementRequest, liquidationID string) string {
	return strings.Join([]string{
		req.PaymentMethod,
		money.Wire(req.Amount),
		strings.ToLower(req.Concept),
		req.Destination,
		liquidationID,
	}, "|")
}

// ListMovements returns the movements of sessionID in chronological order. When sessionID is
// the current session the projection is replaced and becomes complete.
func (l *Ledger) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.Movement, error) {
	tok := l.tok.next(projMovements)

	resp, err := l.t.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	movs, err := movementsFromDTO(resp)
	if err != nil {
		return nil, err
	}

	l.store.update(func(st *State) bool {
		if !l.tok.latest(projMovements, tok) || st.Current == nil || st.Current.ID != sessionID {
			return false
		}
		st.Movements = append([]model.Movement(nil), movs...)
		st.MovementsComplete = true
		sum := ledger.ComputeSummary(st.Current.InitialCash, st.Movements)
		st.Summary = &sum
		return true
	})
	return movs, nil
}

// RefreshSummary reads the pre-aggregated summary of the current session. When the backend
// has no summary for it, the summary is rebuilt from the movement list.
func (l *Ledger) RefreshSummary(ctx context.Context) (*ledger.Summary, error) {
	cur := l.store.Snapshot().Current
	if cur == nil {
		return nil, ErrNoOpenSession
	}
	tok := l.tok.next(projSummary)

	var sum *ledger.Summary
	resp, err := l.t.GetSummary(ctx, cur.ID)
	switch {
	case err == nil:
		if sum, err = summaryFromDTO(resp); err != nil {
			return nil, err
		}
	case apierror.IsNotFound(err):
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Str("session_id", cur.ID.String()).Msg("resumen no disponible, se calcula a partir de los movimientos")
		rs, lerr := l.t.ListMovements(ctx, cur.ID)
		if lerr != nil {
			return nil, lerr
		}
		movs, lerr := movementsFromDTO(rs)
		if lerr != nil {
			return nil, lerr
		}
		computed := ledger.ComputeSummary(cur.InitialCash, movs)
		sum = &computed
	default:
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.store.update(func(st *State) bool {
		if !l.tok.latest(projSummary, tok) || st.Current == nil || st.Current.ID != cur.ID {
			return false
		}
		applied := *sum
		st.Summary = &applied
		return true
	})
	return sum, nil
}

// CancelMovement asks the backend to cancel movementID. The projection only mirrors the
// canceled flag; amounts of other movements are left as the backend reported them.
func (l *Ledger) CancelMovement(ctx context.Context, movementID uuid.UUID) error {
	release, err := l.guard.begin(OpCancelMovement, movementID.String())
	if err != nil {
		return err
	}
	defer release()

	if err := l.t.CancelMovement(ctx, movementID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.tok.invalidate(projMovements, projSummary)
	l.store.update(func(st *State) bool {
		found := false
		for i := range st.Movements {
			if st.Movements[i].ID == movementID {
				st.Movements[i].Canceled = true
				found = true
			}
		}
		// A movement missing from the projection still changed the totals.
		if found && st.MovementsComplete && st.Current != nil {
			sum := ledger.ComputeSummary(st.Current.InitialCash, st.Movements)
			st.Summary = &sum
		} else {
			st.Summary = nil
		}
		return true
	})
	return nil
}
