package cashdesk

import (
	"context"
	"strings"

	"labcaja/internal/apierror"
	"labcaja/internal/dto"
	"labcaja/internal/ledger"
	"labcaja/internal/model"
	"labcaja/internal/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrSessionAlreadyOpen = &apierror.Error{Kind: apierror.KindConflict, Message: "Ya hay una sesión de caja abierta"}
	ErrNoOpenSession      = &apierror.Error{Kind: apierror.KindConflict, Message: "No hay una sesión de caja abierta"}
)

// Sessions drives the OPEN → CLOSED lifecycle of the tracked session.
type Sessions struct {
	*core
}

// CanAcceptMovements reports whether a current session exists and is OPEN.
func (s *Sessions) CanAcceptMovements() bool {
	return s.store.Snapshot().Current.IsOpen()
}

// Open starts a session with the given opening cash. The local state is updated only after
// the backend confirms.
func (s *Sessions) Open(ctx context.Context, registerID, operatorID uuid.UUID, initialCash decimal.Decimal) (*model.CashSession, error) {
	if err := money.RequireNonNegative(initialCash); err != nil {
		return nil, apierror.NewValidationError("El monto inicial no puede ser negativo", err)
	}
	if !money.HasAtMostTwoDecimals(initialCash) {
		return nil, apierror.NewValidationError("El monto inicial admite como máximo 2 decimales", money.ErrPrecision)
	}
	if s.store.Snapshot().Current.IsOpen() {
		return nil, ErrSessionAlreadyOpen
	}

	req := dto.OpenSessionRequest{
		RegisterID:  registerID.String(),
		InitialCash: initialCash,
	}
	if operatorID != uuid.Nil {
		req.OperatorID = operatorID.String()
	}
	if err := dto.Validate(req); err != nil {
		return nil, apierror.NewValidationError("Datos de apertura inválidos", err)
	}

	release, err := s.guard.begin(OpOpen, "")
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := s.t.OpenSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := sessionFromDTO(resp)
	if err != nil {
		return nil, err
	}

	s.tok.invalidate(projCurrent, projMovements, projSummary)
	s.store.update(func(st *State) bool {
		cur := *sess
		sum := ledger.ComputeSummary(cur.InitialCash, nil)
		st.Current = &cur
		st.Movements = []model.Movement{}
		st.MovementsComplete = true
		st.Summary = &sum
		return true
	})

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("register_id", sess.RegisterID.String()).
		Str("initial_cash", money.Wire(sess.InitialCash)).
		Msg("sesión de caja abierta")
	return sess, nil
}

// Close declares the counted cash of the current session. declared is rounded half-up to two
// decimals and clamped before it is sent.
func (s *Sessions) Close(ctx context.Context, declared decimal.Decimal, observations *string) (*model.CashSession, error) {
	cur := s.store.Snapshot().Current
	if !cur.IsOpen() {
		return nil, ErrNoOpenSession
	}
	if err := money.RequireNonNegative(declared); err != nil {
		return nil, apierror.NewValidationError("El monto declarado no puede ser negativo", err)
	}

	final := money.Normalize(declared)
	req := dto.CloseSessionRequest{
		FinalCash:    money.Wire(final),
		Observations: trimmed(observations),
	}
	if err := dto.Validate(req); err != nil {
		return nil, apierror.NewValidationError("Datos de cierre inválidos", err)
	}

	release, err := s.guard.begin(OpClose, "")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.t.CloseSession(ctx, cur.ID, req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	closedAt := s.now()
	closed := *cur
	closed.Status = model.SessionClosed
	closed.FinalCash = &final
	closed.ClosedAt = &closedAt
	closed.Observations = req.Observations

	s.tok.invalidate(projCurrent, projMovements, projSummary)
	s.store.update(func(st *State) bool {
		if st.Current == nil || st.Current.ID != cur.ID {
			return false
		}
		st.Current = nil
		st.Movements = nil
		st.MovementsComplete = false
		st.Summary = nil
		return true
	})

	log.Info().
		Str("session_id", closed.ID.String()).
		Str("final_cash", req.FinalCash).
		Msg("sesión de caja cerrada")
	return &closed, nil
}

// LoadCurrent asks the backend for the open session of registerID. A not-found answer is
// the normal "no session" outcome and clears the local pointer without an error.
func (s *Sessions) LoadCurrent(ctx context.Context, registerID uuid.UUID) (*model.CashSession, error) {
	tok := s.tok.next(projCurrent)

	resp, err := s.t.GetCurrentSession(ctx, registerID)
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	var sess *model.CashSession
	switch {
	case err == nil:
		if sess, err = sessionFromDTO(resp); err != nil {
			return nil, err
		}
		if !sess.IsOpen() {
			sess = nil
		}
	case apierror.IsNotFound(err):
	default:
		return nil, err
	}

	applied := s.store.update(func(st *State) bool {
		if !s.tok.latest(projCurrent, tok) {
			return false
		}
		if sess == nil {
			if st.Current == nil {
				return false
			}
			st.Current = nil
			st.Movements = nil
			st.MovementsComplete = false
			st.Summary = nil
			return true
		}
		same := st.Current != nil && st.Current.ID == sess.ID
		cur := *sess
		st.Current = &cur
		if !same {
			st.Movements = nil
			st.MovementsComplete = false
			st.Summary = nil
		}
		return true
	})
	if !applied && !s.tok.latest(projCurrent, tok) {
		log.Debug().Str("register_id", registerID.String()).Msg("respuesta de sesión actual descartada por una más reciente")
	}
	return sess, nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
