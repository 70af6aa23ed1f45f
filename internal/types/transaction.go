package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction rows are append-only. The soft-delete column exists for
// compliance hiding, never for removal.
type Transaction struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"account_id"`
	Account     *Account       `gorm:"constraint:OnDelete:CASCADE;foreignKey:AccountID;references:ID" json:"account,omitempty"`
	Type        string         `gorm:"not null;index" json:"type"`
	Amount      int64          `gorm:"not null" json:"amount"`
	Currency    string         `gorm:"not null" json:"currency"`
	Description string         `json:"description"`
	Reference   string         `gorm:"index" json:"reference"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Transaction) TableName() string { return "transaction" }
