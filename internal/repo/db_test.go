package repo

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
)

// newTestDB opens an isolated in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	db := newTestDB(t)
	for _, table := range []string{"medications", "inventories", "adherence_records", "idempotency"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("expected table %q after migration", table)
		}
	}
	if !db.Migrator().HasColumn(&domain.Medication{}, "deleted_at") {
		t.Error("medications must carry the soft-delete column")
	}
}
