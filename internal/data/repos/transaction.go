package repos

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelpay/banking-backend/internal/platform/dbctx"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"
	"github.com/kestrelpay/banking-backend/internal/types"
)

type TransactionRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.Transaction) error
	ListByAccount(dbc dbctx.Context, accountID uuid.UUID, limit int) ([]*types.Transaction, error)
	ListByAccountSince(dbc dbctx.Context, accountID uuid.UUID, since time.Time) ([]*types.Transaction, error)
}

type transactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionRepo(db *gorm.DB, log *logger.Logger) TransactionRepo {
	return &transactionRepo{
		db:  db,
		log: log.With("repo", "TransactionRepo"),
	}
}

func (r *transactionRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *transactionRepo) CreateBatch(dbc dbctx.Context, rows []*types.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row == nil || row.ID == uuid.Nil || row.AccountID == uuid.Nil {
			return fmt.Errorf("invalid transaction row")
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	return r.conn(dbc).Create(&rows).Error
}

func (r *transactionRepo) ListByAccount(dbc dbctx.Context, accountID uuid.UUID, limit int) ([]*types.Transaction, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("missing account id")
	}
	q := r.conn(dbc).
		Model(&types.Transaction{}).
		Where("account_id = ?", accountID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Transaction
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByAccountSince returns ascending history from a point in time. The
// ledger aggregate uses it to load only the window the withdrawal-limit
// invariant needs.
func (r *transactionRepo) ListByAccountSince(dbc dbctx.Context, accountID uuid.UUID, since time.Time) ([]*types.Transaction, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("missing account id")
	}
	var out []*types.Transaction
	err := r.conn(dbc).
		Model(&types.Transaction{}).
		Where("account_id = ? AND created_at >= ?", accountID, since).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
