package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashRegister is a physical or logical till. Reference data; CurrentTotal is owned by the server.
type CashRegister struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	DisplayName  string          `gorm:"type:varchar(80);not null"`
	Main         bool            `gorm:"not null;default:false"`
	CurrentTotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	UpdatedAt    time.Time
}

func (CashRegister) TableName() string { return "registradoras" }

// CashSession is the open/closed lifecycle of one register for one operator shift.
// At most one session per register may be OPEN; the partial unique index
// uq_sesiones_caja_abierta enforces it in the database.
type CashSession struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	OperatorID  uuid.UUID        `gorm:"type:uuid;not null"`
	InitialCash decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	FinalCash   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Status      SessionStatus    `gorm:"type:varchar(20);not null;default:'OPEN'"`
	OpenedAt    time.Time        `gorm:"not null"`
	ClosedAt    *time.Time

	// Closing data computed by the server at close time.
	SystemAmount   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Difference     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Classification *string          `gorm:"type:varchar(20)"`
	Observations   *string

	Movements []Movement `gorm:"foreignKey:SessionID"`
}

func (CashSession) TableName() string { return "sesiones_caja" }

// IsOpen reports whether the session can still accept movements.
func (s *CashSession) IsOpen() bool {
	return s != nil && s.Status == SessionOpen
}

// Movement is an append-only entry of the session ledger. Cancellation only sets Canceled;
// PreviousAmount/NewAmount of other movements are never rewritten.
type Movement struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type           MovementType    `gorm:"type:varchar(10);not null"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(20);not null"`
	Destination    Destination     `gorm:"type:varchar(20);not null;default:'BRANCH_REGISTER'"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PreviousAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	NewAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason         *string
	Observations   *string
	// LiquidationID links a liquidation deposit to the external liquidation it settles.
	LiquidationID         *string `gorm:"type:varchar(64)"`
	FromClinicalAttention bool    `gorm:"not null;default:false"`
	Canceled              bool    `gorm:"not null;default:false"`
	OccurredAt            time.Time `gorm:"not null;index"`
}

func (Movement) TableName() string { return "movimientos_caja" }

// RegisterTransfer is the audit row of an "empty register" operation.
type RegisterTransfer struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceRegisterID uuid.UUID       `gorm:"type:uuid;not null;index"`
	TargetRegisterID uuid.UUID       `gorm:"type:uuid;not null"`
	OperatorID       uuid.UUID       `gorm:"type:uuid;not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SourceNewTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt        time.Time
}

func (RegisterTransfer) TableName() string { return "transferencias_caja" }
