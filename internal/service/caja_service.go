package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"labcaja/internal/apierror"
	"labcaja/internal/dto"
	"labcaja/internal/infra"
	"labcaja/internal/ledger"
	"labcaja/internal/model"
	"labcaja/internal/repository"
	"labcaja/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferReason is the reason of the OUTFLOW booked in the source session by a transfer.
const TransferReason = "Vaciado de caja hacia caja principal"

type CajaService interface {
	OpenSession(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	CurrentSession(ctx context.Context, registerID uuid.UUID) (*dto.SessionResponse, error)
	CloseSession(ctx context.Context, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error)
	CancelSession(ctx context.Context, sessionID uuid.UUID) error
	RecordMovement(ctx context.Context, typ model.MovementType, req dto.MovementRequest, liquidationID *string) (*dto.MovementResponse, error)
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error)
	Summary(ctx context.Context, sessionID uuid.UUID) (*dto.SummaryResponse, error)
	CancelMovement(ctx context.Context, movementID uuid.UUID) error
	TransferToMain(ctx context.Context, sourceID, operatorID uuid.UUID, req dto.TransferRequest) (*dto.TransferResponse, error)
	GetRegister(ctx context.Context, registerID uuid.UUID) (*dto.RegisterResponse, error)
}

type cajaService struct {
	repo       repository.CajaRepository
	dispatcher *worker.Dispatcher
	events     infra.EventPublisher
	metrics    *infra.Metrics
	now        func() time.Time
}

// NewCajaService wires the cash ledger. dispatcher and metrics may be nil; a nil events
// publisher discards events.
func NewCajaService(repo repository.CajaRepository, dispatcher *worker.Dispatcher, events infra.EventPublisher, metrics *infra.Metrics) CajaService {
	if events == nil {
		events = infra.NopPublisher{}
	}
	return &cajaService{repo: repo, dispatcher: dispatcher, events: events, metrics: metrics, now: time.Now}
}

// ── OpenSession ───────────────────────────────────────────────────────────────
// One OPEN session per register: checked under the register row lock and backed by the
// uq_sesiones_caja_abierta partial index.

func (s *cajaService) OpenSession(ctx context.Context, operatorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	registerID, err := uuid.Parse(req.RegisterID)
	if err != nil {
		return nil, apierror.Invalid("register_id inválido")
	}
	if req.OperatorID != "" && req.OperatorID != operatorID.String() {
		return nil, apierror.Invalid("El operador no coincide con el usuario autenticado")
	}

	sess := &model.CashSession{
		ID:          uuid.New(),
		RegisterID:  registerID,
		OperatorID:  operatorID,
		InitialCash: req.InitialCash,
		Status:      model.SessionOpen,
		OpenedAt:    s.now(),
	}
	err = s.repo.Transaction(ctx, func(tx repository.CajaRepository) error {
		if _, err := tx.LockRegister(ctx, registerID); err != nil {
			return notFoundOr(err, "Caja no encontrada")
		}
		if _, err := tx.FindOpenSession(ctx, registerID); err == nil {
			return apierror.Conflict("Ya hay una sesión de caja abierta")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.CreateSession(ctx, sess); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierror.Conflict("Ya hay una sesión de caja abierta")
			}
			return fmt.Errorf("crear sesión: %w", err)
		}
		return tx.UpdateRegisterTotal(ctx, registerID, req.InitialCash)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionsOpened.Inc()
	}
	s.publish(ctx, infra.SubjectSessionOpened, toSessionResponse(sess))
	resp := toSessionResponse(sess)
	return &resp, nil
}

// ── CurrentSession ────────────────────────────────────────────────────────────

func (s *cajaService) CurrentSession(ctx context.Context, registerID uuid.UUID) (*dto.SessionResponse, error) {
	sess, err := s.repo.FindOpenSession(ctx, registerID)
	if err != nil {
		return nil, notFoundOr(err, "No hay una sesión de caja abierta")
	}
	resp := toSessionResponse(sess)
	return &resp, nil
}

// ── CloseSession ──────────────────────────────────────────────────────────────
// Blind count: the system amount is computed only after the declaration arrives.
// The system amount is the session summary's total cash, which also folds movements booked
// to the main register. Those never enter this drawer, so an operator who declares only the
// drawer shows a shortage of that amount; the classification is computed on the same figure.

func (s *cajaService) CloseSession(ctx context.Context, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error) {
	declared, err := decimal.NewFromString(req.FinalCash)
	if err != nil {
		return nil, apierror.Invalid("final_cash inválido")
	}

	var closed *model.CashSession
	var rec ledger.Reconciliation
	err = s.repo.Transaction(ctx, func(tx repository.CajaRepository) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return notFoundOr(err, "Sesión de caja no encontrada")
		}
		if !sess.IsOpen() {
			return apierror.Conflict("La sesión de caja no está abierta")
		}
		movs, err := tx.ListMovements(ctx, sessionID)
		if err != nil {
			return err
		}

		rec = ledger.NewReconciliation(ledger.ComputeSummary(sess.InitialCash, movs), declared, req.Observations)
		class := string(rec.Classification())
		system := rec.SystemAmount
		diff := rec.Difference.Round(2)
		closedAt := s.now()

		sess.Status = model.SessionClosed
		sess.FinalCash = &declared
		sess.ClosedAt = &closedAt
		sess.SystemAmount = &system
		sess.Difference = &diff
		sess.Classification = &class
		sess.Observations = req.Observations
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return fmt.Errorf("cerrar sesión: %w", err)
		}
		closed = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	class := string(rec.Classification())
	if s.metrics != nil {
		s.metrics.SessionsClosed.WithLabelValues(class).Inc()
	}
	if class == string(ledger.ClassCritical) {
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("difference", rec.Difference.String()).
			Msg("cierre con diferencia crítica")
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueClosingReport(ctx, worker.ClosingReportPayload{SessionID: sessionID.String()}); err != nil {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("no se pudo encolar el reporte de cierre")
		}
	}
	resp := toSessionResponse(closed)
	s.publish(ctx, infra.SubjectSessionClosed, resp)
	return &resp, nil
}

// ── CancelSession ─────────────────────────────────────────────────────────────

func (s *cajaService) CancelSession(ctx context.Context, sessionID uuid.UUID) error {
	var cancelled *model.CashSession
	err := s.repo.Transaction(ctx, func(tx repository.CajaRepository) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return notFoundOr(err, "Sesión de caja no encontrada")
		}
		if !sess.IsOpen() {
			return apierror.Conflict("La sesión de caja no está abierta")
		}
		at := s.now()
		sess.Status = model.SessionCancelled
		sess.ClosedAt = &at
		cancelled = sess
		return tx.UpdateSession(ctx, sess)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, infra.SubjectSessionCancelled, toSessionResponse(cancelled))
	return nil
}

// ── RecordMovement ────────────────────────────────────────────────────────────
// previous/new amounts are the running total of the register the destination points at.

func (s *cajaService) RecordMovement(ctx context.Context, typ model.MovementType, req dto.MovementRequest, liquidationID *string) (*dto.MovementResponse, error) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apierror.Invalid("session_id inválido")
	}
	pm, err := model.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, apierror.Invalid(err.Error())
	}
	dest, err := model.ParseDestination(req.Destination)
	if err != nil {
		return nil, apierror.Invalid(err.Error())
	}
	concept := req.Concept

	mov := &model.Movement{
		ID:                    uuid.New(),
		SessionID:             sessionID,
		Type:                  typ,
		PaymentMethod:         pm,
		Destination:           dest,
		Amount:                req.Amount,
		Reason:                &concept,
		Observations:          req.Observations,
		LiquidationID:         liquidationID,
		FromClinicalAttention: typ == model.Inflow && req.FromClinicalAttention,
		OccurredAt:            s.now(),
	}
	err = s.repo.Transaction(ctx, func(tx repository.CajaRepository) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return notFoundOr(err, "Sesión de caja no encontrada")
		}
		if !sess.IsOpen() {
			return apierror.Conflict("La sesión de caja no está abierta")
		}
		reg, err := lockTarget(ctx, tx, sess.RegisterID, dest)
		if err != nil {
			return err
		}

		mov.PreviousAmount = reg.CurrentTotal
		if typ == model.Outflow {
			if req.Amount.GreaterThan(reg.CurrentTotal) {
				return apierror.Invalid("Saldo insuficiente en la caja")
			}
			mov.NewAmount = reg.CurrentTotal.Sub(req.Amount)
		} else {
			mov.NewAmount = reg.CurrentTotal.Add(req.Amount)
		}
		if err := tx.CreateMovement(ctx, mov); err != nil {
			return fmt.Errorf("registrar movimiento: %w", err)
		}
		return tx.UpdateRegisterTotal(ctx, reg.ID, mov.NewAmount)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Movements.WithLabelValues(string(typ), string(pm)).Inc()
	}
	resp := toMovementResponse(mov)
	s.publish(ctx, infra.SubjectMovementRecorded, resp)
	return &resp, nil
}

// ── ListMovements / Summary ───────────────────────────────────────────────────

func (s *cajaService) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error) {
	if _, err := s.repo.FindSessionByID(ctx, sessionID); err != nil {
		return nil, notFoundOr(err, "Sesión de caja no encontrada")
	}
	movs, err := s.repo.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, 0, len(movs))
	for i := range movs {
		out = append(out, toMovementResponse(&movs[i]))
	}
	return out, nil
}

func (s *cajaService) Summary(ctx context.Context, sessionID uuid.UUID) (*dto.SummaryResponse, error) {
	sess, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "Sesión de caja no encontrada")
	}
	movs, err := s.repo.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sum := ledger.ComputeSummary(sess.InitialCash, movs)
	byMethod := make(map[string]decimal.Decimal, len(sum.TotalByPaymentMethod))
	for pm, v := range sum.TotalByPaymentMethod {
		byMethod[string(pm)] = v
	}
	return &dto.SummaryResponse{
		SessionID:            sessionID.String(),
		InitialCashAmount:    sum.InitialCashAmount,
		TotalDeposits:        sum.TotalDeposits,
		TotalWithdrawals:     sum.TotalWithdrawals,
		TotalCash:            sum.TotalCash,
		TotalByPaymentMethod: byMethod,
		MovementCount:        sum.MovementCount,
	}, nil
}

// ── CancelMovement ────────────────────────────────────────────────────────────
// The movement is flagged and its effect reversed on the register total; stored
// previous/new amounts are never rewritten.

func (s *cajaService) CancelMovement(ctx context.Context, movementID uuid.UUID) error {
	var canceled *model.Movement
	err := s.repo.Transaction(ctx, func(tx repository.CajaRepository) error {
		mov, err := tx.LockMovement(ctx, movementID)
		if err != nil {
			return notFoundOr(err, "Movimiento no encontrado")
		}
		if mov.Canceled {
			return apierror.Conflict("El movimiento ya fue anulado")
		}
		sess, err := tx.LockSession(ctx, mov.SessionID)
		if err != nil {
			return notFoundOr(err, "Sesión de caja no encontrada")
		}
		if !sess.IsOpen() {
			return apierror.Conflict("La sesión del movimiento no está abierta")
		}
		reg, err := lockTarget(ctx, tx, sess.RegisterID, mov.Destination)
		if err != nil {
			return err
		}

		total := reg.CurrentTotal.Sub(mov.Amount)
		if mov.Type == model.Outflow {
			total = reg.CurrentTotal.Add(mov.Amount)
		}
		if total.IsNegative() {
			return apierror.Conflict("La anulación dejaría la caja con saldo negativo")
		}
		if err := tx.MarkMovementCanceled(ctx, mov.ID); err != nil {
			return err
		}
		mov.Canceled = true
		canceled = mov
		return tx.UpdateRegisterTotal(ctx, reg.ID, total)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, infra.SubjectMovementCanceled, toMovementResponse(canceled))
	return nil
}

// ── TransferToMain ────────────────────────────────────────────────────────────

func (s *cajaService) TransferToMain(ctx context.Context, sourceID, operatorID uuid.UUID, req dto.TransferRequest) (*dto.TransferResponse, error) {
	transfer := &model.RegisterTransfer{
		ID:               uuid.New(),
		SourceRegisterID: sourceID,
		OperatorID:       operatorID,
		Amount:           req.Amount,
		CreatedAt:        s.now(),
	}
	err := s.repo.Transaction(ctx, func(tx repository.CajaRepository) error {
		src, err := tx.LockRegister(ctx, sourceID)
		if err != nil {
			return notFoundOr(err, "Caja no encontrada")
		}
		if src.Main {
			return apierror.Invalid("La caja principal no puede vaciarse en sí misma")
		}
		main, err := tx.FindMainRegister(ctx, src.BranchID)
		if err != nil {
			return notFoundOr(err, "La sucursal no tiene caja principal")
		}
		if main, err = tx.LockRegister(ctx, main.ID); err != nil {
			return err
		}
		if req.Amount.GreaterThan(src.CurrentTotal) {
			return apierror.Invalid("El monto supera el total disponible en la caja")
		}

		newSource := src.CurrentTotal.Sub(req.Amount)
		transfer.TargetRegisterID = main.ID
		transfer.SourceNewTotal = newSource

		if sess, err := tx.FindOpenSession(ctx, sourceID); err == nil {
			reason := TransferReason
			out := &model.Movement{
				ID:             uuid.New(),
				SessionID:      sess.ID,
				Type:           model.Outflow,
				PaymentMethod:  model.Cash,
				Destination:    model.BranchRegister,
				Amount:         req.Amount,
				PreviousAmount: src.CurrentTotal,
				NewAmount:      newSource,
				Reason:         &reason,
				OccurredAt:     transfer.CreatedAt,
			}
			if err := tx.CreateMovement(ctx, out); err != nil {
				return fmt.Errorf("registrar egreso de vaciado: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.UpdateRegisterTotal(ctx, src.ID, newSource); err != nil {
			return err
		}
		if err := tx.UpdateRegisterTotal(ctx, main.ID, main.CurrentTotal.Add(req.Amount)); err != nil {
			return err
		}
		return tx.CreateTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transfers.Inc()
	}
	resp := &dto.TransferResponse{TransferID: transfer.ID.String(), NewTotal: transfer.SourceNewTotal}
	s.publish(ctx, infra.SubjectRegisterEmptied, map[string]interface{}{
		"transfer_id":        transfer.ID.String(),
		"source_register_id": sourceID.String(),
		"target_register_id": transfer.TargetRegisterID.String(),
		"amount":             transfer.Amount,
		"new_total":          transfer.SourceNewTotal,
	})
	return resp, nil
}

// ── GetRegister ───────────────────────────────────────────────────────────────

func (s *cajaService) GetRegister(ctx context.Context, registerID uuid.UUID) (*dto.RegisterResponse, error) {
	reg, err := s.repo.FindRegister(ctx, registerID)
	if err != nil {
		return nil, notFoundOr(err, "Caja no encontrada")
	}
	return &dto.RegisterResponse{
		RegisterID:   reg.ID.String(),
		BranchID:     reg.BranchID.String(),
		DisplayName:  reg.DisplayName,
		Main:         reg.Main,
		CurrentTotal: reg.CurrentTotal,
	}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// lockTarget locks the register a movement of a session on registerID affects.
func lockTarget(ctx context.Context, tx repository.CajaRepository, registerID uuid.UUID, dest model.Destination) (*model.CashRegister, error) {
	if dest != model.MainRegister {
		reg, err := tx.LockRegister(ctx, registerID)
		if err != nil {
			return nil, notFoundOr(err, "Caja no encontrada")
		}
		return reg, nil
	}
	reg, err := tx.FindRegister(ctx, registerID)
	if err != nil {
		return nil, notFoundOr(err, "Caja no encontrada")
	}
	main, err := tx.FindMainRegister(ctx, reg.BranchID)
	if err != nil {
		return nil, notFoundOr(err, "La sucursal no tiene caja principal")
	}
	return tx.LockRegister(ctx, main.ID)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound(msg)
	}
	return err
}

func (s *cajaService) publish(ctx context.Context, subject string, payload interface{}) {
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("no se pudo publicar el evento")
	}
}

func toSessionResponse(sess *model.CashSession) dto.SessionResponse {
	return dto.SessionResponse{
		SessionID:      sess.ID.String(),
		RegisterID:     sess.RegisterID.String(),
		OperatorID:     sess.OperatorID.String(),
		InitialCash:    sess.InitialCash,
		FinalCash:      sess.FinalCash,
		Status:         string(sess.Status),
		OpenedAt:       sess.OpenedAt,
		ClosedAt:       sess.ClosedAt,
		SystemAmount:   sess.SystemAmount,
		Difference:     sess.Difference,
		Classification: sess.Classification,
		Observations:   sess.Observations,
	}
}

func toMovementResponse(m *model.Movement) dto.MovementResponse {
	return dto.MovementResponse{
		MovementID:            m.ID.String(),
		SessionID:             m.SessionID.String(),
		Type:                  string(m.Type),
		PaymentMethod:         string(m.PaymentMethod),
		Destination:           string(m.Destination),
		Amount:                m.Amount,
		PreviousAmount:        m.PreviousAmount,
		NewAmount:             m.NewAmount,
		Reason:                m.Reason,
		Observations:          m.Observations,
		LiquidationID:         m.LiquidationID,
		FromClinicalAttention: m.FromClinicalAttention,
		Canceled:              m.Canceled,
		OccurredAt:            m.OccurredAt,
	}
}
