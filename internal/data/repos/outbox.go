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

type OutboxRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.OutboxMessage) error
	// ListDue returns pending messages below the retry ceiling, oldest first.
	ListDue(dbc dbctx.Context, batchSize, maxRetries int) ([]*types.OutboxMessage, error)
	// MarkBatch persists dispatcher outcome mutations for a whole cycle in
	// one transaction.
	MarkBatch(dbc dbctx.Context, rows []*types.OutboxMessage) error
	// ListBacklog returns unprocessed rows regardless of retry count, for
	// operator inspection of retries and abandoned messages.
	ListBacklog(dbc dbctx.Context, limit int) ([]*types.OutboxMessage, error)
}

type outboxRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboxRepo(db *gorm.DB, log *logger.Logger) OutboxRepo {
	return &outboxRepo{
		db:  db,
		log: log.With("repo", "OutboxRepo"),
	}
}

func (r *outboxRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *outboxRepo) CreateBatch(dbc dbctx.Context, rows []*types.OutboxMessage) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row == nil || row.ID == uuid.Nil || row.EventType == "" {
			return fmt.Errorf("invalid outbox row")
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}
	return r.conn(dbc).Create(&rows).Error
}

func (r *outboxRepo) ListDue(dbc dbctx.Context, batchSize, maxRetries int) ([]*types.OutboxMessage, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	var out []*types.OutboxMessage
	err := r.conn(dbc).
		Model(&types.OutboxMessage{}).
		Where("processed_at IS NULL AND retry_count < ?", maxRetries).
		Order("occurred_at ASC").
		Limit(batchSize).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outboxRepo) MarkBatch(dbc dbctx.Context, rows []*types.OutboxMessage) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return r.conn(dbc).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if row == nil || row.ID == uuid.Nil {
				return fmt.Errorf("invalid outbox row in batch")
			}
			updates := map[string]any{
				"processed_at": row.ProcessedAt,
				"retry_count":  row.RetryCount,
				"last_error":   row.LastError,
				"updated_at":   now,
			}
			if err := tx.Model(&types.OutboxMessage{}).
				Where("id = ?", row.ID).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *outboxRepo) ListBacklog(dbc dbctx.Context, limit int) ([]*types.OutboxMessage, error) {
	q := r.conn(dbc).
		Model(&types.OutboxMessage{}).
		Where("processed_at IS NULL").
		Order("occurred_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.OutboxMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
