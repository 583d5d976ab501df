package catalog

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/vmunix/vidstage/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func insertTestMedia(t *testing.T, s *Store, titleText string, typ MediaType) *Media {
	t.Helper()
	m := &Media{Title: titleText, Type: typ, Year: 2020}
	if err := s.AddMedia(m); err != nil {
		t.Fatalf("insert test media: %v", err)
	}
	return m
}
