package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Account struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"customer_id"`
	AccountNumber string         `gorm:"uniqueIndex;not null" json:"account_number"`
	AccountType   string         `gorm:"not null" json:"account_type"`
	BalanceAmount int64          `gorm:"not null" json:"balance_amount"`
	Currency      string         `gorm:"not null" json:"currency"`
	Active        bool           `gorm:"not null;default:true" json:"active"`
	Version       int            `gorm:"not null;default:0" json:"version"`
	DeletedBy     *string        `json:"deleted_by,omitempty"`
	Transactions  []Transaction  `gorm:"foreignKey:AccountID;references:ID" json:"transactions,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Account) TableName() string { return "account" }
