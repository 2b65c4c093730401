// Package money holds the decimal helpers shared by the cash register client and server.
// Amounts are always shopspring decimals with two fraction digits on the wire; binary
// floats never carry an amount.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits of every amount.
const Scale = 2

// MaxAmount is the largest magnitude accepted by the decimal(12,2) columns.
var MaxAmount = decimal.RequireFromString("9999999999.99")

var (
	ErrMalformed   = errors.New("monto inválido")
	ErrNotPositive = errors.New("el monto debe ser mayor a cero")
	ErrNegative    = errors.New("el monto no puede ser negativo")
	ErrPrecision   = errors.New("el monto admite como máximo 2 decimales")
)

// Normalize rounds half away from zero to two decimals and clamps the result to ±MaxAmount.
func Normalize(d decimal.Decimal) decimal.Decimal {
	r := d.Round(Scale)
	if r.GreaterThan(MaxAmount) {
		return MaxAmount
	}
	if r.LessThan(MaxAmount.Neg()) {
		return MaxAmount.Neg()
	}
	return r
}

// Wire renders the normalized amount with exactly two fraction digits ("123.46").
func Wire(d decimal.Decimal) string {
	return Normalize(d).StringFixed(Scale)
}

// HasAtMostTwoDecimals reports whether d is representable with Scale fraction digits.
func HasAtMostTwoDecimals(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}

// RequirePositive fails when d <= 0 or carries more than two decimals.
func RequirePositive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrNotPositive
	}
	if !HasAtMostTwoDecimals(d) {
		return ErrPrecision
	}
	return nil
}

// RequireNonNegative fails when d < 0.
func RequireNonNegative(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegative
	}
	return nil
}

// Parse reads operator input. Accepted forms: "1250.50", "1250,50", "1.250,50" and "1,250.50".
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, ErrMalformed
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot:
		// es-AR: dots group thousands, comma separates decimals
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return d, nil
}

// Format renders an amount for display in es-AR style: "$ 1.250,50", "-$ 10,50".
func Format(d decimal.Decimal) string {
	n := d.Round(Scale)
	sign := ""
	if n.IsNegative() {
		sign = "-"
		n = n.Abs()
	}
	fixed := n.StringFixed(Scale)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "$ " + b.String() + "," + frac
}
