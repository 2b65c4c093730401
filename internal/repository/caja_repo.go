package repository

import (
	"context"
	"time"

	"labcaja/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CajaRepository persists registers, sessions, movements and transfers. Lock* methods take
// a row lock and are only meaningful inside Transaction.
type CajaRepository interface {
	FindRegister(ctx context.Context, id uuid.UUID) (*model.CashRegister, error)
	FindMainRegister(ctx context.Context, branchID uuid.UUID) (*model.CashRegister, error)
	LockRegister(ctx context.Context, id uuid.UUID) (*model.CashRegister, error)
	UpdateRegisterTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error

	CreateSession(ctx context.Context, s *model.CashSession) error
	FindOpenSession(ctx context.Context, registerID uuid.UUID) (*model.CashSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	LockSession(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	UpdateSession(ctx context.Context, s *model.CashSession) error

	CreateMovement(ctx context.Context, m *model.Movement) error
	LockMovement(ctx context.Context, id uuid.UUID) (*model.Movement, error)
	MarkMovementCanceled(ctx context.Context, id uuid.UUID) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.Movement, error)

	CreateTransfer(ctx context.Context, t *model.RegisterTransfer) error

	// Transaction runs fn against a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx CajaRepository) error) error
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) Transaction(ctx context.Context, fn func(tx CajaRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&cajaRepo{db: tx})
	})
}

func (r *cajaRepo) FindRegister(ctx context.Context, id uuid.UUID) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&reg).Error
	return &reg, err
}

func (r *cajaRepo) FindMainRegister(ctx context.Context, branchID uuid.UUID) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := r.db.WithContext(ctx).Where("branch_id = ? AND main = true", branchID).Take(&reg).Error
	return &reg, err
}

func (r *cajaRepo) LockRegister(ctx context.Context, id uuid.UUID) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&reg).Error
	return &reg, err
}

func (r *cajaRepo) UpdateRegisterTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&model.CashRegister{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"current_total": total, "updated_at": time.Now()}).Error
}

func (r *cajaRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cajaRepo) FindOpenSession(ctx context.Context, registerID uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Where("register_id = ? AND status = ?", registerID, model.SessionOpen).
		Take(&s).Error
	return &s, err
}

func (r *cajaRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&s).Error
	return &s, err
}

func (r *cajaRepo) LockSession(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&s).Error
	return &s, err
}

func (r *cajaRepo) UpdateSession(ctx context.Context, s *model.CashSession) error {
	return r.db.WithContext(ctx).Omit("Movements").Save(s).Error
}

func (r *cajaRepo) CreateMovement(ctx context.Context, m *model.Movement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) LockMovement(ctx context.Context, id uuid.UUID) (*model.Movement, error) {
	var m model.Movement
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&m).Error
	return &m, err
}

// MarkMovementCanceled only flips the flag; movements are otherwise immutable.
func (r *cajaRepo) MarkMovementCanceled(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Movement{}).
		Where("id = ?", id).
		Update("canceled", true).Error
}

func (r *cajaRepo) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.Movement, error) {
	var movs []model.Movement
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("occurred_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) CreateTransfer(ctx context.Context, t *model.RegisterTransfer) error {
	return r.db.WithContext(ctx).Create(t).Error
}
