package testutil

import (
	"testing"

	"ht-go/internal/database"
	"ht-go/internal/ht"
)

// NewTestDatabase creates a new in-memory SQLite database with the schema applied.
// The database is automatically closed when the test completes. A nil clock
// uses FixedClock.
func NewTestDatabase(t *testing.T, clock ht.Clock) *database.SQLiteDatabase {
	t.Helper()

	if clock == nil {
		clock = FixedClock()
	}
	db, err := database.NewSQLiteDatabase(":memory:", clock, NewStubIDGenerator())
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
