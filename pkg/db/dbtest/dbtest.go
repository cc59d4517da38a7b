// Package dbtest opens isolated in-memory SQLite databases carrying the POS schema.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db/models"
)

// Open returns a fresh shared-cache in-memory database migrated with every POS model.
// The connection pool is capped at one connection so concurrent callers serialize
// on the database like row-locked writers would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:pos_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.MenuItem{},
		&models.MenuItemIngredient{},
		&models.Ingredient{},
		&models.Customer{},
		&models.Employee{},
		&models.Transaction{},
		&models.TransactionDetail{},
		&models.InventoryMovement{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}
