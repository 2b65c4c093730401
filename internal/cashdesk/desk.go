// Package cashdesk is the client-side model of the server-authoritative cash ledger: the
// session lifecycle of one register, its movement ledger, reconciliation at closing time and
// transfers to the main register. All shared state lives in a Store that callers observe;
// it only changes through Desk operations.
package cashdesk

import (
	"context"
	"time"

	"labcaja/internal/client"
	"labcaja/internal/ledger"
	"labcaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type core struct {
	t     client.Transport
	store *Store
	guard *inflight
	tok   *tokens
	keys  *submissionKeys
	now   func() time.Time
}

// Desk is the façade for one register context.
type Desk struct {
	registerID uuid.UUID
	operatorID uuid.UUID
	core       *core

	sessions  *Sessions
	movements *Ledger
	transfers *Transfers
}

// Option customizes a Desk.
type Option func(*core)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *core) { c.now = now }
}

func NewDesk(t client.Transport, registerID, operatorID uuid.UUID, opts ...Option) *Desk {
	store := NewStore(registerID)
	c := &core{
		t:     t,
		store: store,
		guard: newInflight(store),
		tok:   newTokens(),
		keys:  newSubmissionKeys(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return &Desk{
		registerID: registerID,
		operatorID: operatorID,
		core:       c,
		sessions:   &Sessions{core: c},
		movements:  &Ledger{core: c},
		transfers:  &Transfers{core: c},
	}
}

func (d *Desk) RegisterID() uuid.UUID { return d.registerID }

// State returns a snapshot of the desk projections.
func (d *Desk) State() State { return d.core.store.Snapshot() }

// Subscribe follows state changes; call the returned func to stop.
func (d *Desk) Subscribe() (<-chan State, func()) { return d.core.store.Subscribe() }

// Busy reports whether op has a request in flight.
func (d *Desk) Busy(op Operation) bool { return d.core.guard.busy(op) }

// CanAcceptMovements reports whether the tracked session is OPEN.
func (d *Desk) CanAcceptMovements() bool { return d.sessions.CanAcceptMovements() }

func (d *Desk) LoadCurrent(ctx context.Context) (*model.CashSession, error) {
	return d.sessions.LoadCurrent(ctx, d.registerID)
}

func (d *Desk) Open(ctx context.Context, initialCash decimal.Decimal) (*model.CashSession, error) {
	return d.sessions.Open(ctx, d.registerID, d.operatorID, initialCash)
}

// BeginClosing refreshes the summary and returns the reconciliation of the declared count.
// Nothing is sent to the backend besides the summary read.
func (d *Desk) BeginClosing(ctx context.Context, declared decimal.Decimal, observations *string) (ledger.Reconciliation, error) {
	sum, err := d.movements.RefreshSummary(ctx)
	if err != nil {
		return ledger.Reconciliation{}, err
	}
	return ledger.NewReconciliation(*sum, declared, observations), nil
}

// CloseResult is the outcome of a confirmed close. Reconciliation is nil when no summary
// was known at closing time.
type CloseResult struct {
	Session        model.CashSession
	Reconciliation *ledger.Reconciliation
}

func (d *Desk) Close(ctx context.Context, declared decimal.Decimal, observations *string) (*CloseResult, error) {
	before := d.core.store.Snapshot()
	closed, err := d.sessions.Close(ctx, declared, observations)
	if err != nil {
		return nil, err
	}
	res := &CloseResult{Session: *closed}
	if before.Summary != nil {
		r := ledger.NewReconciliation(*before.Summary, *closed.FinalCash, observations)
		res.Reconciliation = &r
	}
	return res, nil
}

func (d *Desk) RecordDeposit(ctx context.Context, in MovementInput) (*model.Movement, error) {
	return d.movements.RecordDeposit(ctx, in)
}

func (d *Desk) RecordWithdrawal(ctx context.Context, in MovementInput) (*model.Movement, error) {
	return d.movements.RecordWithdrawal(ctx, in)
}

func (d *Desk) RecordLiquidationDeposit(ctx context.Context, in MovementInput, liquidationID string) (*model.Movement, error) {
	return d.movements.RecordLiquidationDeposit(ctx, in, liquidationID)
}

func (d *Desk) CancelMovement(ctx context.Context, movementID uuid.UUID) error {
	return d.movements.CancelMovement(ctx, movementID)
}

func (d *Desk) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.Movement, error) {
	return d.movements.ListMovements(ctx, sessionID)
}

func (d *Desk) RefreshSummary(ctx context.Context) (*ledger.Summary, error) {
	return d.movements.RefreshSummary(ctx)
}

// Transfer empties amount from the desk's register into the main register.
func (d *Desk) Transfer(ctx context.Context, amount decimal.Decimal) (*TransferResult, error) {
	return d.transfers.Transfer(ctx, d.registerID, amount)
}

// TransferFrom empties amount from any branch register into its main register.
func (d *Desk) TransferFrom(ctx context.Context, sourceRegisterID uuid.UUID, amount decimal.Decimal) (*TransferResult, error) {
	return d.transfers.Transfer(ctx, sourceRegisterID, amount)
}

func (d *Desk) RefreshRegister(ctx context.Context, registerID uuid.UUID) (RegisterTotal, error) {
	return d.transfers.RefreshRegister(ctx, registerID)
}
