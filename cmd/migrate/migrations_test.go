package main

import (
	"path/filepath"
	"runtime"
	"testing"

	"keerthanaapi/db"

	"github.com/pressly/goose/v3"
)

func TestCollectMigrations_ParsesMigrationsDir(t *testing.T) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file lives in cmd/migrate/, so repo root is ../..
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	dir := filepath.Join(repoRoot, "db", "migrations")

	goose.SetBaseFS(nil)
	if _, err := goose.CollectMigrations(dir, 0, goose.MaxVersion); err != nil {
		t.Fatalf("expected migrations to parse, got error: %v", err)
	}
}

func TestCollectMigrations_Embedded(t *testing.T) {
	goose.SetBaseFS(db.Migrations)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	migrations, err := goose.CollectMigrations(db.MigrationsDir, 0, goose.MaxVersion)
	if err != nil {
		t.Fatalf("expected embedded migrations to parse, got error: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(migrations))
	}
}
