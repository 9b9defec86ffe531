package db

import (
	"path/filepath"
	"testing"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "graph.db")
	svc, err := Open(Config{Driver: DriverSQLite, Path: path}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer svc.Close()
	if svc.Driver() != DriverSQLite {
		t.Fatalf("driver: want=%q got=%q", DriverSQLite, svc.Driver())
	}
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	for _, model := range []any{&types.GraphBuildRun{}, &types.SchoolHierarchy{}} {
		if !svc.DB().Migrator().HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: DriverPostgres}, nil); err == nil {
		t.Fatalf("expected error for postgres without DSN")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_USER", "postgres")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5432")
	t.Setenv("POSTGRES_NAME", "graphs")
	cfg := ConfigFromEnv()
	if cfg.Driver != DriverPostgres {
		t.Fatalf("driver: want=%q got=%q", DriverPostgres, cfg.Driver)
	}
	want := "postgres://postgres:@db.internal:5432/graphs?sslmode=disable"
	if cfg.DSN != want {
		t.Fatalf("dsn: want=%q got=%q", want, cfg.DSN)
	}
}
