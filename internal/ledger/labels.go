package ledger

import (
	"fmt"

	"labcaja/internal/model"
)

// Category is a display bucket. It never feeds the numeric aggregation.
type Category int

const (
	CategoryAttention Category = iota + 1
	CategoryDeposit
	CategoryWithdrawal
)

// CategoryOf buckets attention-sourced inflows, manual inflows and outflows.
func CategoryOf(m model.Movement) Category {
	switch m.Type {
	case model.Inflow:
		if m.FromClinicalAttention {
			return CategoryAttention
		}
		return CategoryDeposit
	case model.Outflow:
		return CategoryWithdrawal
	}
	panic(fmt.Sprintf("ledger: unhandled movement type %q", string(m.Type)))
}

func (c Category) Label() string {
	switch c {
	case CategoryAttention:
		return "Atención"
	case CategoryDeposit:
		return "Depósito"
	case CategoryWithdrawal:
		return "Extracción"
	}
	panic(fmt.Sprintf("ledger: unhandled category %d", int(c)))
}
