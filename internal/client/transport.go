// Package client is the transport boundary between the cash register core and the
// ledger backend. Transport is what the core consumes; HTTPTransport speaks the REST
// contract of the backend.
package client

import (
	"context"

	"labcaja/internal/dto"

	"github.com/google/uuid"
)

// Transport is the remote ledger. Every call returns a success payload or an
// *apierror.Error; GetCurrentSession and GetSummary fail with KindNotFound when the
// backend has nothing to return.
type Transport interface {
	OpenSession(ctx context.Context, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	GetCurrentSession(ctx context.Context, registerID uuid.UUID) (*dto.SessionResponse, error)
	CloseSession(ctx context.Context, sessionID uuid.UUID, req dto.CloseSessionRequest) error
	RecordDeposit(ctx context.Context, req dto.MovementRequest) (*dto.MovementResponse, error)
	RecordWithdrawal(ctx context.Context, req dto.MovementRequest) (*dto.MovementResponse, error)
	RecordLiquidationDeposit(ctx context.Context, req dto.LiquidationDepositRequest) (*dto.MovementResponse, error)
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error)
	GetSummary(ctx context.Context, sessionID uuid.UUID) (*dto.SummaryResponse, error)
	CancelMovement(ctx context.Context, movementID uuid.UUID) error
	TransferToMain(ctx context.Context, sourceRegisterID uuid.UUID, req dto.TransferRequest) (*dto.TransferResponse, error)
	GetRegister(ctx context.Context, registerID uuid.UUID) (*dto.RegisterResponse, error)
}
