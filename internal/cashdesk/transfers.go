package cashdesk

import (
	"context"

	"labcaja/internal/apierror"
	"labcaja/internal/client"
	"labcaja/internal/dto"
	"labcaja/internal/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TransferResult reports a confirmed transfer and the optimistic total kept for the source.
type TransferResult struct {
	TransferID       string
	SourceRegisterID uuid.UUID
	Amount           decimal.Decimal
	// ReportedTotal is the source total the backend answered with.
	ReportedTotal decimal.Decimal
	Estimated     RegisterTotal
}

// Transfers empties branch registers into the main register and caches register totals.
type Transfers struct {
	*core
}

// Transfer moves amount from source into its branch's main register. A known cached total
// caps the amount locally; the backend is the final judge otherwise.
func (x *Transfers) Transfer(ctx context.Context, source uuid.UUID, amount decimal.Decimal) (*TransferResult, error) {
	if err := money.RequirePositive(amount); err != nil {
		return nil, apierror.NewValidationError(amountMessage(err), err)
	}
	if known, ok := x.store.Snapshot().Registers[source]; ok && amount.GreaterThan(known.Amount) {
		return nil, apierror.NewValidationError("El monto supera el total disponible en la caja", nil)
	}
	req := dto.TransferRequest{Amount: amount}
	if err := dto.Validate(req); err != nil {
		return nil, apierror.NewValidationError("Monto de transferencia inválido", err)
	}

	release, err := x.guard.begin(OpTransfer, "")
	if err != nil {
		return nil, err
	}
	defer release()

	submission := "transfer|" + source.String() + "|" + money.Wire(amount)
	ctx = client.WithIdempotencyKey(ctx, x.keys.acquire(submission))
	resp, err := x.t.TransferToMain(ctx, source, req)
	x.keys.settle(submission, err)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &TransferResult{
		TransferID:       resp.TransferID,
		SourceRegisterID: source,
		Amount:           amount,
		ReportedTotal:    resp.NewTotal,
	}
	x.tok.invalidate(projRegister(source.String()))
	x.store.update(func(st *State) bool {
		est := resp.NewTotal
		if base, ok := st.Registers[source]; ok {
			est = base.Amount.Sub(amount)
		}
		res.Estimated = RegisterTotal{Amount: est, Phase: PhaseOptimistic, UpdatedAt: x.now()}
		st.Registers[source] = res.Estimated
		// The backend books the transfer as an outflow of the source's open session.
		if source == st.RegisterID && st.Current != nil {
			st.MovementsComplete = false
			st.Summary = nil
		}
		return true
	})
	if source == x.store.Snapshot().RegisterID {
		x.tok.invalidate(projMovements, projSummary)
	}

	log.Info().
		Str("register_id", source.String()).
		Str("amount", money.Wire(amount)).
		Str("estimated_total", res.Estimated.Amount.String()).
		Str("reported_total", resp.NewTotal.String()).
		Msg("transferencia a caja principal registrada")
	return res, nil
}

// RefreshRegister reads the authoritative total of registerID and confirms the cache.
func (x *Transfers) RefreshRegister(ctx context.Context, registerID uuid.UUID) (RegisterTotal, error) {
	key := projRegister(registerID.String())
	tok := x.tok.next(key)

	resp, err := x.t.GetRegister(ctx, registerID)
	if err != nil {
		return RegisterTotal{}, err
	}
	if err := ctx.Err(); err != nil {
		return RegisterTotal{}, err
	}

	total := RegisterTotal{Amount: resp.CurrentTotal, Phase: PhaseConfirmed, UpdatedAt: x.now()}
	x.store.update(func(st *State) bool {
		if !x.tok.latest(key, tok) {
			return false
		}
		st.Registers[registerID] = total
		return true
	})
	return total, nil
}
