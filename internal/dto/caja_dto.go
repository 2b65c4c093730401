package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers; the close amount is the only string-typed amount.
	decimal.MarshalJSONWithoutQuotes = true
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	RegisterID  string          `json:"register_id"  validate:"required,uuid"`
	OperatorID  string          `json:"operator_id"  validate:"omitempty,uuid"`
	InitialCash decimal.Decimal `json:"initial_cash" validate:"min=0,money2"`
}

// CloseSessionRequest carries the declared count as a fixed two-decimal string ("950.50").
type CloseSessionRequest struct {
	FinalCash    string  `json:"final_cash"   validate:"required,fixed2"`
	Observations *string `json:"observations" validate:"omitempty,max=500"`
}

type MovementRequest struct {
	SessionID     string          `json:"session_id"     validate:"required,uuid"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=CASH DEBIT_CARD CREDIT_CARD TRANSFER QR"`
	Amount        decimal.Decimal `json:"amount"         validate:"gt=0,money2"`
	Concept       string          `json:"concept"        validate:"required,notblank,max=200"`
	Observations  *string         `json:"observations"   validate:"omitempty,max=500"`
	Destination   string          `json:"destination"    validate:"required,oneof=BRANCH_REGISTER MAIN_REGISTER"`
	// FromClinicalAttention marks deposits generated by a billed clinical service.
	FromClinicalAttention bool `json:"from_clinical_attention"`
}

type LiquidationDepositRequest struct {
	MovementRequest
	LiquidationID string `json:"liquidation_id" validate:"required,notblank,max=64"`
}

type TransferRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,money2"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessionResponse struct {
	SessionID      string           `json:"session_id"`
	RegisterID     string           `json:"register_id"`
	OperatorID     string           `json:"operator_id"`
	InitialCash    decimal.Decimal  `json:"initial_cash"`
	FinalCash      *decimal.Decimal `json:"final_cash"`
	Status         string           `json:"status"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at"`
	SystemAmount   *decimal.Decimal `json:"system_amount,omitempty"`
	Difference     *decimal.Decimal `json:"difference,omitempty"`
	Classification *string          `json:"classification,omitempty"`
	Observations   *string          `json:"observations,omitempty"`
}

type MovementResponse struct {
	MovementID            string          `json:"movement_id"`
	SessionID             string          `json:"session_id"`
	Type                  string          `json:"type"`
	PaymentMethod         string          `json:"payment_method"`
	Destination           string          `json:"destination"`
	Amount                decimal.Decimal `json:"amount"`
	PreviousAmount        decimal.Decimal `json:"previous_amount"`
	NewAmount             decimal.Decimal `json:"new_amount"`
	Reason                *string         `json:"reason"`
	Observations          *string         `json:"observations"`
	LiquidationID         *string         `json:"liquidation_id"`
	FromClinicalAttention bool            `json:"from_clinical_attention"`
	Canceled              bool            `json:"canceled"`
	OccurredAt            time.Time       `json:"occurred_at"`
}

type SummaryResponse struct {
	SessionID            string                     `json:"session_id"`
	InitialCashAmount    decimal.Decimal            `json:"initial_cash_amount"`
	TotalDeposits        decimal.Decimal            `json:"total_deposits"`
	TotalWithdrawals     decimal.Decimal            `json:"total_withdrawals"`
	TotalCash            decimal.Decimal            `json:"total_cash"`
	TotalByPaymentMethod map[string]decimal.Decimal `json:"total_by_payment_method"`
	MovementCount        int                        `json:"movement_count"`
}

type TransferResponse struct {
	TransferID string          `json:"transfer_id"`
	NewTotal   decimal.Decimal `json:"new_total"`
}

type RegisterResponse struct {
	RegisterID   string          `json:"register_id"`
	BranchID     string          `json:"branch_id"`
	DisplayName  string          `json:"display_name"`
	Main         bool            `json:"main"`
	CurrentTotal decimal.Decimal `json:"current_total"`
}
