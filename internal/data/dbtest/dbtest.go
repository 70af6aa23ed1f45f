// Package dbtest opens throwaway databases for storage-layer tests. The
// default is an in-memory sqlite database per test; set TEST_POSTGRES_DSN to
// run the same tests against a real postgres instead.
package dbtest

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kestrelpay/banking-backend/internal/data/db"
	"github.com/kestrelpay/banking-backend/internal/types"
)

func Open(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var (
		gdb *gorm.DB
		err error
	)
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		gdb, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		name := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		gdb, err = gorm.Open(sqlite.Open(name), cfg)
	}
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	dropAll(t, gdb)
	if err := db.AutoMigrateAll(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		dropAll(t, gdb)
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func dropAll(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	err := gdb.Migrator().DropTable(
		&types.OutboxMessage{},
		&types.Transaction{},
		&types.Account{},
	)
	if err != nil {
		t.Fatalf("drop tables: %v", err)
	}
}
