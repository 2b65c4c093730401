package model

import "fmt"

// SessionStatus: OPEN → CLOSED, OPEN → CANCELLED. CLOSED and CANCELLED are terminal.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "OPEN"
	SessionClosed    SessionStatus = "CLOSED"
	SessionCancelled SessionStatus = "CANCELLED"
)

func ParseSessionStatus(s string) (SessionStatus, error) {
	switch st := SessionStatus(s); st {
	case SessionOpen, SessionClosed, SessionCancelled:
		return st, nil
	}
	return "", fmt.Errorf("estado de sesión desconocido: %q", s)
}

type MovementType string

const (
	Inflow  MovementType = "INFLOW"
	Outflow MovementType = "OUTFLOW"
)

func ParseMovementType(s string) (MovementType, error) {
	switch mt := MovementType(s); mt {
	case Inflow, Outflow:
		return mt, nil
	}
	return "", fmt.Errorf("tipo de movimiento desconocido: %q", s)
}

type PaymentMethod string

const (
	Cash       PaymentMethod = "CASH"
	DebitCard  PaymentMethod = "DEBIT_CARD"
	CreditCard PaymentMethod = "CREDIT_CARD"
	Transfer   PaymentMethod = "TRANSFER"
	QR         PaymentMethod = "QR"
)

// PaymentMethods lists every method in display order.
var PaymentMethods = []PaymentMethod{Cash, DebitCard, CreditCard, Transfer, QR}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch pm := PaymentMethod(s); pm {
	case Cash, DebitCard, CreditCard, Transfer, QR:
		return pm, nil
	}
	return "", fmt.Errorf("medio de pago desconocido: %q", s)
}

// Label is the display name of the payment method.
func (pm PaymentMethod) Label() string {
	switch pm {
	case Cash:
		return "Efectivo"
	case DebitCard:
		return "Tarjeta de débito"
	case CreditCard:
		return "Tarjeta de crédito"
	case Transfer:
		return "Transferencia"
	case QR:
		return "QR"
	}
	panic(fmt.Sprintf("model: unhandled payment method %q", string(pm)))
}

// Destination selects which register total a movement affects.
type Destination string

const (
	BranchRegister Destination = "BRANCH_REGISTER"
	MainRegister   Destination = "MAIN_REGISTER"
)

func ParseDestination(s string) (Destination, error) {
	switch d := Destination(s); d {
	case BranchRegister, MainRegister:
		return d, nil
	}
	return "", fmt.Errorf("destino desconocido: %q", s)
}
