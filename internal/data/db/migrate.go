package db

import (
	"gorm.io/gorm"

	"github.com/kestrelpay/banking-backend/internal/types"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Account{},
		&types.Transaction{},
		&types.OutboxMessage{},
	)
}
