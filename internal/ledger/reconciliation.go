package ledger

import (
	"labcaja/internal/money"

	"github.com/shopspring/decimal"
)

// Classification of a closing difference relative to the system amount.
type Classification string

const (
	ClassNormal   Classification = "normal"      // |difference| <= 1%
	ClassWarning  Classification = "advertencia" // <= 5%
	ClassCritical Classification = "critico"     // > 5%
)

var (
	hundred = decimal.NewFromInt(100)
	onePct  = decimal.NewFromInt(1)
	fivePct = decimal.NewFromInt(5)
)

// Reconciliation exists only while the operator is closing the register.
type Reconciliation struct {
	SystemAmount   decimal.Decimal
	DeclaredAmount decimal.Decimal
	Difference     decimal.Decimal
	Observations   *string
}

// NewReconciliation compares the declared count against the summary's TotalCash.
func NewReconciliation(s Summary, declared decimal.Decimal, observations *string) Reconciliation {
	return Reconciliation{
		SystemAmount:   s.TotalCash,
		DeclaredAmount: declared,
		Difference:     ComputeDifference(declared, s),
		Observations:   observations,
	}
}

// Shortage reports a declared count below the system amount.
func (r Reconciliation) Shortage() bool { return r.Difference.IsNegative() }

// Surplus reports a declared count above the system amount.
func (r Reconciliation) Surplus() bool { return r.Difference.IsPositive() }

// DifferencePct is the difference as a percentage of the system amount, rounded to 2 decimals.
// A zero system amount yields zero.
func (r Reconciliation) DifferencePct() decimal.Decimal {
	if r.SystemAmount.IsZero() {
		return decimal.Zero
	}
	return r.Difference.Div(r.SystemAmount).Mul(hundred).Round(money.Scale)
}

// Classification buckets the difference: normal (<=1%), advertencia (<=5%), critico.
// The base is the session total, main-register movements included.
func (r Reconciliation) Classification() Classification {
	if r.SystemAmount.IsZero() {
		if r.Difference.IsZero() {
			return ClassNormal
		}
		return ClassCritical
	}
	abs := r.DifferencePct().Abs()
	switch {
	case abs.LessThanOrEqual(onePct):
		return ClassNormal
	case abs.LessThanOrEqual(fivePct):
		return ClassWarning
	default:
		return ClassCritical
	}
}

// DisplayDifference is the difference rounded for presentation only.
func (r Reconciliation) DisplayDifference() string {
	return money.Format(r.Difference)
}
