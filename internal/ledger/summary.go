// Package ledger aggregates a session's movements into a Summary and reconciles the
// operator's declared count against it. Every function here is pure.
package ledger

import (
	"labcaja/internal/model"

	"github.com/shopspring/decimal"
)

// Summary is the derived view of a session. It is never persisted by the client.
type Summary struct {
	InitialCashAmount    decimal.Decimal
	TotalDeposits        decimal.Decimal
	TotalWithdrawals     decimal.Decimal
	TotalCash            decimal.Decimal
	TotalByPaymentMethod map[model.PaymentMethod]decimal.Decimal
	MovementCount        int
}

// ComputeSummary folds the non-canceled movements on top of the initial cash:
// TotalCash = initial + Σ inflows − Σ outflows. Per-method totals are net of outflows.
func ComputeSummary(initialCash decimal.Decimal, movements []model.Movement) Summary {
	s := Summary{
		InitialCashAmount:    initialCash,
		TotalDeposits:        decimal.Zero,
		TotalWithdrawals:     decimal.Zero,
		TotalByPaymentMethod: make(map[model.PaymentMethod]decimal.Decimal, len(model.PaymentMethods)),
	}
	for _, pm := range model.PaymentMethods {
		s.TotalByPaymentMethod[pm] = decimal.Zero
	}

	for _, m := range movements {
		if m.Canceled {
			continue
		}
		switch m.Type {
		case model.Inflow:
			s.TotalDeposits = s.TotalDeposits.Add(m.Amount)
			s.TotalByPaymentMethod[m.PaymentMethod] = s.TotalByPaymentMethod[m.PaymentMethod].Add(m.Amount)
		case model.Outflow:
			s.TotalWithdrawals = s.TotalWithdrawals.Add(m.Amount)
			s.TotalByPaymentMethod[m.PaymentMethod] = s.TotalByPaymentMethod[m.PaymentMethod].Sub(m.Amount)
		default:
			continue
		}
		s.MovementCount++
	}

	s.TotalCash = initialCash.Add(s.TotalDeposits).Sub(s.TotalWithdrawals)
	return s
}

// ComputeDifference is declared − system at full precision. Negative means shortage.
func ComputeDifference(declared decimal.Decimal, s Summary) decimal.Decimal {
	return declared.Sub(s.TotalCash)
}

// CheckRunningTotal verifies NewAmount = PreviousAmount ± Amount for a movement
// received from the server.
func CheckRunningTotal(m model.Movement) bool {
	switch m.Type {
	case model.Inflow:
		return m.NewAmount.Sub(m.PreviousAmount).Equal(m.Amount)
	case model.Outflow:
		return m.PreviousAmount.Sub(m.NewAmount).Equal(m.Amount)
	}
	return false
}
