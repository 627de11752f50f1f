package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/adminkit/adapters/clock"
	"github.com/artpar/adminkit/adapters/idgen"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
)

func TestSQLiteStore_IDsAndTimestamps(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	store, err := storage.NewSQLiteStore(":memory:",
		storage.WithIDGenerator(idgen.NewSequential("note_")),
		storage.WithClock(clk),
	)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	res, err := schema.Resource("Note").Fields(schema.Text("Body")).Compile()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.CreateTable(ctx, res); err != nil {
		t.Fatal(err)
	}

	created, err := store.Create(ctx, "note", map[string]any{"body": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created["id"] != "note_1" {
		t.Errorf("id = %v, want note_1", created["id"])
	}
	if created["created_at"] != "2024-03-01T12:00:00Z" || created["updated_at"] != "2024-03-01T12:00:00Z" {
		t.Errorf("timestamps = %v / %v", created["created_at"], created["updated_at"])
	}

	explicit, err := store.Create(ctx, "note", map[string]any{"id": "custom", "body": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if explicit["id"] != "custom" {
		t.Errorf("explicit id = %v", explicit["id"])
	}

	clk.Advance(time.Hour)
	updated, err := store.Update(ctx, "note", "note_1", map[string]any{"body": "changed"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated["created_at"] != "2024-03-01T12:00:00Z" || updated["updated_at"] != "2024-03-01T13:00:00Z" {
		t.Errorf("timestamps after update = %v / %v", updated["created_at"], updated["updated_at"])
	}
}
