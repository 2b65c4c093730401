package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"labcaja/internal/cashdesk"
	"labcaja/internal/ledger"
	"labcaja/internal/model"
	"labcaja/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch format {
	case "json", "yaml":
		return &printer{format: format, w: w}, nil
	}
	return nil, fmt.Errorf("formato de salida desconocido %q (json|yaml)", format)
}

func (p *printer) print(v interface{}) error {
	if p.format == "yaml" {
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Amounts are printed in wire form ("1250.50") so the output can be piped back in.

type sessionView struct {
	ID             string  `json:"id" yaml:"id"`
	RegisterID     string  `json:"register_id" yaml:"register_id"`
	Status         string  `json:"status" yaml:"status"`
	InitialCash    string  `json:"initial_cash" yaml:"initial_cash"`
	OpenedAt       string  `json:"opened_at" yaml:"opened_at"`
	ClosedAt       *string `json:"closed_at,omitempty" yaml:"closed_at,omitempty"`
	FinalCash      *string `json:"final_cash,omitempty" yaml:"final_cash,omitempty"`
	Classification *string `json:"classification,omitempty" yaml:"classification,omitempty"`
}

func newSessionView(s *model.CashSession) *sessionView {
	if s == nil {
		return nil
	}
	v := &sessionView{
		ID:             s.ID.String(),
		RegisterID:     s.RegisterID.String(),
		Status:         string(s.Status),
		InitialCash:    money.Wire(s.InitialCash),
		OpenedAt:       s.OpenedAt.Format(time.RFC3339),
		FinalCash:      wirePtr(s.FinalCash),
		Classification: s.Classification,
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		v.ClosedAt = &t
	}
	return v
}

type movementView struct {
	ID            string  `json:"id" yaml:"id"`
	Type          string  `json:"type" yaml:"type"`
	Label         string  `json:"label" yaml:"label"`
	PaymentMethod string  `json:"payment_method" yaml:"payment_method"`
	Destination   string  `json:"destination" yaml:"destination"`
	Amount        string  `json:"amount" yaml:"amount"`
	NewAmount     string  `json:"new_amount" yaml:"new_amount"`
	Reason        *string `json:"reason,omitempty" yaml:"reason,omitempty"`
	LiquidationID *string `json:"liquidation_id,omitempty" yaml:"liquidation_id,omitempty"`
	Canceled      bool    `json:"canceled" yaml:"canceled"`
	OccurredAt    string  `json:"occurred_at" yaml:"occurred_at"`
}

func newMovementView(m model.Movement) movementView {
	return movementView{
		ID:            m.ID.String(),
		Type:          string(m.Type),
		Label:         ledger.CategoryOf(m).Label(),
		PaymentMethod: string(m.PaymentMethod),
		Destination:   string(m.Destination),
		Amount:        money.Wire(m.Amount),
		NewAmount:     money.Wire(m.NewAmount),
		Reason:        m.Reason,
		LiquidationID: m.LiquidationID,
		Canceled:      m.Canceled,
		OccurredAt:    m.OccurredAt.Format(time.RFC3339),
	}
}

type methodTotal struct {
	Method string `json:"method" yaml:"method"`
	Total  string `json:"total" yaml:"total"`
}

type summaryView struct {
	InitialCash      string        `json:"initial_cash" yaml:"initial_cash"`
	TotalDeposits    string        `json:"total_deposits" yaml:"total_deposits"`
	TotalWithdrawals string        `json:"total_withdrawals" yaml:"total_withdrawals"`
	TotalCash        string        `json:"total_cash" yaml:"total_cash"`
	ByPaymentMethod  []methodTotal `json:"by_payment_method" yaml:"by_payment_method"`
	MovementCount    int           `json:"movement_count" yaml:"movement_count"`
}

func newSummaryView(s *ledger.Summary) *summaryView {
	if s == nil {
		return nil
	}
	v := &summaryView{
		InitialCash:      money.Wire(s.InitialCashAmount),
		TotalDeposits:    money.Wire(s.TotalDeposits),
		TotalWithdrawals: money.Wire(s.TotalWithdrawals),
		TotalCash:        money.Wire(s.TotalCash),
		MovementCount:    s.MovementCount,
	}
	for method, total := range s.TotalByPaymentMethod {
		v.ByPaymentMethod = append(v.ByPaymentMethod, methodTotal{Method: string(method), Total: money.Wire(total)})
	}
	sort.Slice(v.ByPaymentMethod, func(i, j int) bool { return v.ByPaymentMethod[i].Method < v.ByPaymentMethod[j].Method })
	return v
}

type statusView struct {
	RegisterID string       `json:"register_id" yaml:"register_id"`
	Session    *sessionView `json:"session" yaml:"session"`
	Summary    *summaryView `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type reconciliationView struct {
	SystemAmount   string `json:"system_amount" yaml:"system_amount"`
	DeclaredAmount string `json:"declared_amount" yaml:"declared_amount"`
	Difference     string `json:"difference" yaml:"difference"`
	Display        string `json:"display" yaml:"display"`
	Classification string `json:"classification" yaml:"classification"`
}

type closeView struct {
	Session        *sessionView        `json:"session" yaml:"session"`
	Reconciliation *reconciliationView `json:"reconciliation,omitempty" yaml:"reconciliation,omitempty"`
}

func newCloseView(res *cashdesk.CloseResult) closeView {
	v := closeView{Session: newSessionView(&res.Session)}
	if r := res.Reconciliation; r != nil {
		v.Reconciliation = &reconciliationView{
			SystemAmount:   money.Wire(r.SystemAmount),
			DeclaredAmount: money.Wire(r.DeclaredAmount),
			Difference:     money.Wire(r.Difference),
			Display:        r.DisplayDifference(),
			Classification: string(r.Classification()),
		}
	}
	return v
}

type transferView struct {
	TransferID       string `json:"transfer_id" yaml:"transfer_id"`
	SourceRegisterID string `json:"source_register_id" yaml:"source_register_id"`
	Amount           string `json:"amount" yaml:"amount"`
	ReportedTotal    string `json:"reported_total" yaml:"reported_total"`
	EstimatedTotal   string `json:"estimated_total" yaml:"estimated_total"`
}

func newTransferView(res *cashdesk.TransferResult) transferView {
	return transferView{
		TransferID:       res.TransferID,
		SourceRegisterID: res.SourceRegisterID.String(),
		Amount:           money.Wire(res.Amount),
		ReportedTotal:    money.Wire(res.ReportedTotal),
		EstimatedTotal:   money.Wire(res.Estimated.Amount),
	}
}

type registerView struct {
	RegisterID string `json:"register_id" yaml:"register_id"`
	Total      string `json:"total" yaml:"total"`
	Phase      string `json:"phase" yaml:"phase"`
	UpdatedAt  string `json:"updated_at" yaml:"updated_at"`
}

func newRegisterView(id uuid.UUID, t cashdesk.RegisterTotal) registerView {
	return registerView{
		RegisterID: id.String(),
		Total:      money.Wire(t.Amount),
		Phase:      t.Phase.String(),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
}

func wirePtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money.Wire(*d)
	return &s
}
