package infra

// pdf.go: closing report of a cash session using go-pdf/fpdf.
// A4 portrait with:
//   - Register and session header
//   - Initial cash, system amount, declared count and difference
//   - Net totals per payment method
//   - Movement table (time, category, method, concept, amount)
//
// The output file is saved to storagePath/cierre_{session_id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"labcaja/internal/ledger"
	"labcaja/internal/model"
	"labcaja/internal/money"

	"github.com/go-pdf/fpdf"
)

// GenerateClosingReportPDF writes the closing report of sess and returns its path.
func GenerateClosingReportPDF(reg *model.CashRegister, sess *model.CashSession, movs []model.Movement, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("cierre_%s.pdf", sess.ID))

	sum := ledger.ComputeSummary(sess.InitialCash, movs)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, tr("Cierre de caja"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	name := reg.DisplayName
	if name == "" {
		name = reg.ID.String()
	}
	pdf.CellFormat(contentW, 5, tr(name), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW*0.5, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.5, 5, tr(value), "", 1, "R", false, 0, "")
	}

	row("Sesión", sess.ID.String())
	row("Apertura", sess.OpenedAt.Format("02/01/2006 15:04"))
	if sess.ClosedAt != nil {
		row("Cierre", sess.ClosedAt.Format("02/01/2006 15:04"))
	}
	row("Estado", string(sess.Status))
	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ────────────────────────────────────────────────────────────────
	row("Monto inicial", money.Format(sess.InitialCash))
	row("Depósitos", money.Format(sum.TotalDeposits))
	row("Extracciones", money.Format(sum.TotalWithdrawals))
	system := sum.TotalCash
	if sess.SystemAmount != nil {
		system = *sess.SystemAmount
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW*0.5, 6, tr("Total del sistema"), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.5, 6, tr(money.Format(system)), "", 1, "R", false, 0, "")
	if sess.FinalCash != nil {
		row("Monto declarado", money.Format(*sess.FinalCash))
	}
	if sess.Difference != nil {
		class := ""
		if sess.Classification != nil {
			class = " (" + *sess.Classification + ")"
		}
		row("Diferencia", money.Format(*sess.Difference)+class)
	}
	if sess.Observations != nil {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, tr("Observaciones: "+*sess.Observations), "", "L", false)
	}

	// ── Per payment method ────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, tr("Totales por medio de pago"), "B", 1, "L", false, 0, "")
	for _, pm := range model.PaymentMethods {
		row(pm.Label(), money.Format(sum.TotalByPaymentMethod[pm]))
	}

	// ── Movements ─────────────────────────────────────────────────────────────
	pdf.Ln(3)
	col := []float64{contentW * 0.12, contentW * 0.16, contentW * 0.2, contentW * 0.32, contentW * 0.2}
	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range []string{"Hora", "Tipo", "Medio", "Concepto", "Monto"} {
		align := "L"
		if i == 4 {
			align = "R"
		}
		pdf.CellFormat(col[i], 5, tr(h), "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, m := range movs {
		concept := ""
		if m.Reason != nil {
			concept = *m.Reason
		}
		if r := []rune(concept); len(r) > 34 {
			concept = string(r[:33]) + "…"
		}
		amount := money.Format(m.Amount)
		if m.Type == model.Outflow {
			amount = money.Format(m.Amount.Neg())
		}
		if m.Canceled {
			amount += " (anulado)"
		}
		pdf.CellFormat(col[0], 5, m.OccurredAt.Format("15:04"), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[1], 5, tr(ledger.CategoryOf(m).Label()), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[2], 5, tr(m.PaymentMethod.Label()), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[3], 5, tr(concept), "", 0, "L", false, 0, "")
		pdf.CellFormat(col[4], 5, tr(amount), "", 1, "R", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
