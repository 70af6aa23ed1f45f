package repos

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelpay/banking-backend/internal/platform/dbctx"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"
	"github.com/kestrelpay/banking-backend/internal/types"
)

type AccountRepo interface {
	Create(dbc dbctx.Context, row *types.Account) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Account, error)
	GetByNumber(dbc dbctx.Context, number string) (*types.Account, error)
	// GetByNumberUnscoped also returns soft-deleted rows, for write flows
	// that must see the deletion marker instead of a not-found.
	GetByNumberUnscoped(dbc dbctx.Context, number string) (*types.Account, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID, deletedBy string) error
}

type accountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountRepo(db *gorm.DB, log *logger.Logger) AccountRepo {
	return &accountRepo{
		db:  db,
		log: log.With("repo", "AccountRepo"),
	}
}

func (r *accountRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *accountRepo) Create(dbc dbctx.Context, row *types.Account) error {
	if row == nil || row.ID == uuid.Nil || strings.TrimSpace(row.AccountNumber) == "" {
		return fmt.Errorf("invalid account row")
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return r.conn(dbc).Create(row).Error
}

func (r *accountRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Account, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing account id")
	}
	var out types.Account
	err := r.conn(dbc).
		Model(&types.Account{}).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *accountRepo) GetByNumber(dbc dbctx.Context, number string) (*types.Account, error) {
	return r.getByNumber(r.conn(dbc), number)
}

func (r *accountRepo) GetByNumberUnscoped(dbc dbctx.Context, number string) (*types.Account, error) {
	return r.getByNumber(r.conn(dbc).Unscoped(), number)
}

func (r *accountRepo) getByNumber(conn *gorm.DB, number string) (*types.Account, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("missing account number")
	}
	var out types.Account
	err := conn.
		Model(&types.Account{}).
		Where("account_number = ?", number).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SoftDelete hides the account row and records who asked for it. The row
// itself stays in place.
func (r *accountRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID, deletedBy string) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing account id")
	}
	deletedBy = strings.TrimSpace(deletedBy)
	conn := r.conn(dbc)
	if err := conn.Model(&types.Account{}).
		Where("id = ?", id).
		Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&types.Account{}).Error
}
