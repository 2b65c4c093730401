package cashdesk

import (
	"context"
	"sync"
	"time"

	"labcaja/internal/apierror"
	"labcaja/internal/client"
	"labcaja/internal/dto"
	"labcaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeBackend is an in-memory stand-in for the cash API with the same running-total rules.
type fakeBackend struct {
	mu sync.Mutex

	registerID uuid.UUID
	mainID     uuid.UUID
	totals     map[uuid.UUID]decimal.Decimal

	session   *dto.SessionResponse
	movements []dto.MovementResponse

	summaryMissing bool
	lastClose      dto.CloseSessionRequest
	lastMovement   dto.MovementRequest
	sentKeys       []string

	calls   map[string]int
	errs    map[string]error
	gates   map[string]chan struct{}
	once    map[string]bool
	entered chan string
}

func newFakeBackend(registerID uuid.UUID) *fakeBackend {
	mainID := uuid.New()
	return &fakeBackend{
		registerID: registerID,
		mainID:     mainID,
		totals:     map[uuid.UUID]decimal.Decimal{registerID: decimal.Zero, mainID: decimal.Zero},
		calls:      make(map[string]int),
		errs:       make(map[string]error),
		gates:      make(map[string]chan struct{}),
		once:       make(map[string]bool),
		entered:    make(chan string, 16),
	}
}

// hold makes the next calls of op block until the returned func is called.
func (f *fakeBackend) hold(op string) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[op] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, op)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// holdNext blocks only the next call of op; later calls go through.
func (f *fakeBackend) holdNext(op string) func() {
	release := f.hold(op)
	f.mu.Lock()
	f.once[op] = true
	f.mu.Unlock()
	return release
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// enter records a call and returns the forced error for op plus the gate to wait on.
func (f *fakeBackend) enter(op string) (error, chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	gate := f.gates[op]
	if f.once[op] {
		delete(f.gates, op)
		delete(f.once, op)
	}
	return f.errs[op], gate
}

func (f *fakeBackend) wait(op string, gate chan struct{}) {
	if gate == nil {
		return
	}
	f.entered <- op
	<-gate
}

func notFound(msg string) error {
	return &apierror.Error{Kind: apierror.KindNotFound, Status: 404, Message: msg}
}

func (f *fakeBackend) OpenSession(_ context.Context, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	err, gate := f.enter("open")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.session != nil && f.session.Status == string(model.SessionOpen) {
		f.mu.Unlock()
		return nil, &apierror.Error{Kind: apierror.KindConflict, Status: 409, Message: "Ya hay una sesión de caja abierta"}
	}
	f.session = &dto.SessionResponse{
		SessionID:   uuid.NewString(),
		RegisterID:  req.RegisterID,
		OperatorID:  req.OperatorID,
		InitialCash: req.InitialCash,
		Status:      string(model.SessionOpen),
		OpenedAt:    time.Now(),
	}
	f.movements = nil
	f.totals[f.registerID] = req.InitialCash
	out := *f.session
	f.mu.Unlock()

	f.wait("open", gate)
	return &out, nil
}

func (f *fakeBackend) GetCurrentSession(_ context.Context, _ uuid.UUID) (*dto.SessionResponse, error) {
	err, gate := f.enter("current")
	f.mu.Lock()
	var out *dto.SessionResponse
	if err == nil && f.session != nil && f.session.Status == string(model.SessionOpen) {
		cp := *f.session
		out = &cp
	}
	f.mu.Unlock()

	f.wait("current", gate)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, notFound("No hay sesión abierta")
	}
	return out, nil
}

func (f *fakeBackend) CloseSession(_ context.Context, sessionID uuid.UUID, req dto.CloseSessionRequest) error {
	err, gate := f.enter("close")
	f.wait("close", gate)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastClose = req
	if f.session == nil || f.session.SessionID != sessionID.String() {
		return notFound("sesión no encontrada")
	}
	f.session.Status = string(model.SessionClosed)
	return nil
}

func (f *fakeBackend) RecordDeposit(ctx context.Context, req dto.MovementRequest) (*dto.MovementResponse, error) {
	return f.recordMovement(ctx, "deposit", model.Inflow, req, nil)
}

func (f *fakeBackend) RecordWithdrawal(ctx context.Context, req dto.MovementRequest) (*dto.MovementResponse, error) {
	return f.recordMovement(ctx, "withdrawal", model.Outflow, req, nil)
}

func (f *fakeBackend) RecordLiquidationDeposit(ctx context.Context, req dto.LiquidationDepositRequest) (*dto.MovementResponse, error) {
	id := req.LiquidationID
	return f.recordMovement(ctx, "liquidation", model.Inflow, req.MovementRequest, &id)
}

// keyOf records the idempotency key a call carried.
func (f *fakeBackend) keyOf(ctx context.Context) {
	key, _ := client.IdempotencyKeyFrom(ctx)
	f.mu.Lock()
	f.sentKeys = append(f.sentKeys, key)
	f.mu.Unlock()
}

func (f *fakeBackend) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sentKeys...)
}

func (f *fakeBackend) recordMovement(ctx context.Context, op string, typ model.MovementType, req dto.MovementRequest, liquidationID *string) (*dto.MovementResponse, error) {
	f.keyOf(ctx)
	err, gate := f.enter(op)
	f.wait(op, gate)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMovement = req
	if f.session == nil || f.session.SessionID != req.SessionID || f.session.Status != string(model.SessionOpen) {
		return nil, &apierror.Error{Kind: apierror.KindConflict, Status: 409, Message: "La sesión no está abierta"}
	}
	target := f.registerID
	if req.Destination == string(model.MainRegister) {
		target = f.mainID
	}
	prev := f.totals[target]
	next := prev.Add(req.Amount)
	if typ == model.Outflow {
		next = prev.Sub(req.Amount)
	}
	f.totals[target] = next
	concept := req.Concept
	m := dto.MovementResponse{
		MovementID:            uuid.NewString(),
		SessionID:             req.SessionID,
		Type:                  string(typ),
		PaymentMethod:         req.PaymentMethod,
		Destination:           req.Destination,
		Amount:                req.Amount,
		PreviousAmount:        prev,
		NewAmount:             next,
		Reason:                &concept,
		Observations:          req.Observations,
		LiquidationID:         liquidationID,
		FromClinicalAttention: req.FromClinicalAttention,
		OccurredAt:            time.Now(),
	}
	f.movements = append(f.movements, m)
	return &m, nil
}

func (f *fakeBackend) ListMovements(_ context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error) {
	err, gate := f.enter("list")
	f.mu.Lock()
	var out []dto.MovementResponse
	for _, m := range f.movements {
		if m.SessionID == sessionID.String() {
			out = append(out, m)
		}
	}
	f.mu.Unlock()
	f.wait("list", gate)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeBackend) GetSummary(_ context.Context, sessionID uuid.UUID) (*dto.SummaryResponse, error) {
	err, gate := f.enter("summary")
	out, serr := f.summary(sessionID)
	f.wait("summary", gate)
	if err != nil {
		return nil, err
	}
	return out, serr
}

// summary aggregates the session as it is now; a held read answers with this snapshot.
func (f *fakeBackend) summary(sessionID uuid.UUID) (*dto.SummaryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryMissing || f.session == nil || f.session.SessionID != sessionID.String() {
		return nil, notFound("resumen no encontrado")
	}
	out := &dto.SummaryResponse{
		SessionID:            sessionID.String(),
		InitialCashAmount:    f.session.InitialCash,
		TotalDeposits:        decimal.Zero,
		TotalWithdrawals:     decimal.Zero,
		TotalByPaymentMethod: map[string]decimal.Decimal{},
	}
	for _, m := range f.movements {
		if m.Canceled {
			continue
		}
		if m.Type == string(model.Inflow) {
			out.TotalDeposits = out.TotalDeposits.Add(m.Amount)
			out.TotalByPaymentMethod[m.PaymentMethod] = out.TotalByPaymentMethod[m.PaymentMethod].Add(m.Amount)
		} else {
			out.TotalWithdrawals = out.TotalWithdrawals.Add(m.Amount)
			out.TotalByPaymentMethod[m.PaymentMethod] = out.TotalByPaymentMethod[m.PaymentMethod].Sub(m.Amount)
		}
		out.MovementCount++
	}
	out.TotalCash = out.InitialCashAmount.Add(out.TotalDeposits).Sub(out.TotalWithdrawals)
	return out, nil
}

func (f *fakeBackend) CancelMovement(_ context.Context, movementID uuid.UUID) error {
	err, gate := f.enter("cancel_movement")
	f.wait("cancel_movement", gate)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.movements {
		m := &f.movements[i]
		if m.MovementID != movementID.String() {
			continue
		}
		if m.Canceled {
			return &apierror.Error{Kind: apierror.KindConflict, Status: 409, Message: "El movimiento ya fue anulado"}
		}
		m.Canceled = true
		target := f.registerID
		if m.Destination == string(model.MainRegister) {
			target = f.mainID
		}
		if m.Type == string(model.Inflow) {
			f.totals[target] = f.totals[target].Sub(m.Amount)
		} else {
			f.totals[target] = f.totals[target].Add(m.Amount)
		}
		return nil
	}
	return notFound("movimiento no encontrado")
}

func (f *fakeBackend) TransferToMain(ctx context.Context, source uuid.UUID, req dto.TransferRequest) (*dto.TransferResponse, error) {
	f.keyOf(ctx)
	err, gate := f.enter("transfer")
	f.wait("transfer", gate)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.totals[source]
	if req.Amount.GreaterThan(prev) {
		return nil, &apierror.Error{Kind: apierror.KindValidation, Status: 422, Message: "Saldo insuficiente"}
	}
	f.totals[source] = prev.Sub(req.Amount)
	f.totals[f.mainID] = f.totals[f.mainID].Add(req.Amount)
	if source == f.registerID && f.session != nil && f.session.Status == string(model.SessionOpen) {
		reason := "Vaciado de caja hacia caja principal"
		f.movements = append(f.movements, dto.MovementResponse{
			MovementID:     uuid.NewString(),
			SessionID:      f.session.SessionID,
			Type:           string(model.Outflow),
			PaymentMethod:  string(model.Cash),
			Destination:    string(model.BranchRegister),
			Amount:         req.Amount,
			PreviousAmount: prev,
			NewAmount:      f.totals[source],
			Reason:         &reason,
			OccurredAt:     time.Now(),
		})
	}
	return &dto.TransferResponse{TransferID: uuid.NewString(), NewTotal: f.totals[source]}, nil
}

func (f *fakeBackend) GetRegister(_ context.Context, registerID uuid.UUID) (*dto.RegisterResponse, error) {
	err, gate := f.enter("register")
	f.mu.Lock()
	total, ok := f.totals[registerID]
	f.mu.Unlock()
	f.wait("register", gate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("caja no encontrada")
	}
	return &dto.RegisterResponse{
		RegisterID:   registerID.String(),
		Main:         registerID == f.mainID,
		CurrentTotal: total,
	}, nil
}

var _ client.Transport = (*fakeBackend)(nil)
