package startup

import (
	"context"
	"testing"

	"github.com/SlpAus/tinyballot-backend/internal/platform/config"
	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
)

func TestInitializeApplicationMigratesWithoutRedis(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSqlite,
		Sqlite: config.SqliteConfig{Path: "file:startup?mode=memory&cache=shared"},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := InitializeApplication(context.Background(), db); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, table := range []string{"polls", "candidates", "ballots", "ballot_candidates"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
	if err := RebuildCache(context.Background()); err != nil {
		t.Fatalf("rebuild without redis should be a no-op: %v", err)
	}
}
