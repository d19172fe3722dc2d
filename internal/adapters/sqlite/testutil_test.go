package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/example/cardwatch/internal/db"
	"github.com/example/cardwatch/internal/ports/secondary"
)

// setupTestDB opens a fresh in-memory database with the real schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

var testOpenedAt = time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

// newTestCard returns a minimal open card record for fixtures.
func newTestCard(id string) *secondary.CardRecord {
	return &secondary.CardRecord{
		ID:       id,
		Name:     "Replace HVAC filter",
		BoardRef: "ops/maintenance",
		Status:   "open",
		CycleSeq: 1,
		OpenedAt: testOpenedAt,
		Recipients: []secondary.RecipientRecord{
			{Identity: "alice", Email: "alice@example.com", Phone: "+15550100", ChatHandle: "@alice"},
			{Identity: "bob", Email: "bob@example.com"},
		},
	}
}

// mustCreateCard inserts the fixture card or fails the test.
func mustCreateCard(t *testing.T, repo secondary.CardRepository, card *secondary.CardRecord) {
	t.Helper()
	if err := repo.Create(context.Background(), card); err != nil {
		t.Fatalf("failed to create fixture card %s: %v", card.ID, err)
	}
}
