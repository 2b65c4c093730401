package cashdesk

import (
	"fmt"

	"labcaja/internal/apierror"
	"labcaja/internal/dto"
	"labcaja/internal/ledger"
	"labcaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func sessionFromDTO(r *dto.SessionResponse) (*model.CashSession, error) {
	id, err := uuid.Parse(r.SessionID)
	if err != nil {
		return nil, badPayload("session_id", err)
	}
	registerID, err := uuid.Parse(r.RegisterID)
	if err != nil {
		return nil, badPayload("register_id", err)
	}
	var operatorID uuid.UUID
	if r.OperatorID != "" {
		if operatorID, err = uuid.Parse(r.OperatorID); err != nil {
			return nil, badPayload("operator_id", err)
		}
	}
	status, err := model.ParseSessionStatus(r.Status)
	if err != nil {
		return nil, badPayload("status", err)
	}
	return &model.CashSession{
		ID:             id,
		RegisterID:     registerID,
		OperatorID:     operatorID,
		InitialCash:    r.InitialCash,
		FinalCash:      r.FinalCash,
		Status:         status,
		OpenedAt:       r.OpenedAt,
		ClosedAt:       r.ClosedAt,
		SystemAmount:   r.SystemAmount,
		Difference:     r.Difference,
		Classification: r.Classification,
		Observations:   r.Observations,
	}, nil
}

func movementFromDTO(r *dto.MovementResponse) (model.Movement, error) {
	id, err := uuid.Parse(r.MovementID)
	if err != nil {
		return model.Movement{}, badPayload("movement_id", err)
	}
	sessionID, err := uuid.Parse(r.SessionID)
	if err != nil {
		return model.Movement{}, badPayload("session_id", err)
	}
	typ, err := model.ParseMovementType(r.Type)
	if err != nil {
		return model.Movement{}, badPayload("type", err)
	}
	pm, err := model.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return model.Movement{}, badPayload("payment_method", err)
	}
	dest := model.BranchRegister
	if r.Destination != "" {
		if dest, err = model.ParseDestination(r.Destination); err != nil {
			return model.Movement{}, badPayload("destination", err)
		}
	}
	return model.Movement{
		ID:                    id,
		SessionID:             sessionID,
		Type:                  typ,
		PaymentMethod:         pm,
		Destination:           dest,
		Amount:                r.Amount,
		PreviousAmount:        r.PreviousAmount,
		NewAmount:             r.NewAmount,
		Reason:                r.Reason,
		Observations:          r.Observations,
		LiquidationID:         r.LiquidationID,
		FromClinicalAttention: r.FromClinicalAttention,
		Canceled:              r.Canceled,
		OccurredAt:            r.OccurredAt,
	}, nil
}

func movementsFromDTO(rs []dto.MovementResponse) ([]model.Movement, error) {
	out := make([]model.Movement, 0, len(rs))
	for i := range rs {
		m, err := movementFromDTO(&rs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func summaryFromDTO(r *dto.SummaryResponse) (*ledger.Summary, error) {
	s := &ledger.Summary{
		InitialCashAmount:    r.InitialCashAmount,
		TotalDeposits:        r.TotalDeposits,
		TotalWithdrawals:     r.TotalWithdrawals,
		TotalCash:            r.TotalCash,
		TotalByPaymentMethod: make(map[model.PaymentMethod]decimal.Decimal, len(model.PaymentMethods)),
		MovementCount:        r.MovementCount,
	}
	for _, pm := range model.PaymentMethods {
		s.TotalByPaymentMethod[pm] = decimal.Zero
	}
	for k, v := range r.TotalByPaymentMethod {
		pm, err := model.ParsePaymentMethod(k)
		if err != nil {
			return nil, badPayload("total_by_payment_method", err)
		}
		s.TotalByPaymentMethod[pm] = v
	}
	return s, nil
}

func badPayload(field string, err error) error {
	return &apierror.Error{Kind: apierror.KindUnexpected, Err: fmt.Errorf("cashdesk: invalid %s in response: %w", field, err)}
}
