package permissions

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/dialect"
)

func sqliteStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// One connection so every statement sees the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	adapter, err := dialect.New(dialect.SQLite)
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	store := NewSQLStore(adapter)
	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store, db
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store, db := sqliteStore(t)
	ctx := context.Background()

	doc := &fieldgate.TablePermissions{
		Operations: map[fieldgate.Operation][]fieldgate.Rule{
			fieldgate.OpSelect: {{Allow: fieldgate.AllowRole, Roles: []string{"admin"}}},
			fieldgate.OpInsert: {},
		},
	}
	if err := store.Save(ctx, db, "notes", doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, db, "notes")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rules, defined := loaded.Rules(fieldgate.OpSelect)
	if !defined || len(rules) != 1 || rules[0].Allow != fieldgate.AllowRole {
		t.Fatalf("SELECT rules did not round-trip: %+v", loaded)
	}
	// An explicit empty list survives the JSON round trip as defined.
	if rules, defined := loaded.Rules(fieldgate.OpInsert); !defined || len(rules) != 0 {
		t.Fatalf("empty INSERT list did not round-trip: %v, %v", rules, defined)
	}
	if _, defined := loaded.Rules(fieldgate.OpDelete); defined {
		t.Fatal("absent DELETE entry should stay undefined")
	}
}

func TestSQLStoreUpsert(t *testing.T) {
	store, db := sqliteStore(t)
	ctx := context.Background()

	first := &fieldgate.TablePermissions{
		Operations: map[fieldgate.Operation][]fieldgate.Rule{
			fieldgate.OpSelect: {{Allow: fieldgate.AllowPublic}},
		},
	}
	second := &fieldgate.TablePermissions{
		Operations: map[fieldgate.Operation][]fieldgate.Rule{
			fieldgate.OpSelect: {{Allow: fieldgate.AllowPrivate}},
		},
	}
	if err := store.Save(ctx, db, "notes", first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, db, "notes", second); err != nil {
		t.Fatalf("resave: %v", err)
	}

	loaded, err := store.Load(ctx, db, "notes")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rules, _ := loaded.Rules(fieldgate.OpSelect)
	if len(rules) != 1 || rules[0].Allow != fieldgate.AllowPrivate {
		t.Fatalf("upsert did not replace the document: %+v", rules)
	}
}

func TestSQLStoreLoadMissing(t *testing.T) {
	store, db := sqliteStore(t)
	_, err := store.Load(context.Background(), db, "ghosts")
	if !errors.Is(err, fieldgate.ErrNoPermissions) {
		t.Fatalf("expected ErrNoPermissions, got %v", err)
	}
}

func TestSQLStoreRemove(t *testing.T) {
	store, db := sqliteStore(t)
	ctx := context.Background()

	doc := &fieldgate.TablePermissions{
		Operations: map[fieldgate.Operation][]fieldgate.Rule{
			fieldgate.OpSelect: {{Allow: fieldgate.AllowPublic}},
		},
	}
	if err := store.Save(ctx, db, "notes", doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Remove(ctx, db, "notes"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Load(ctx, db, "notes"); !errors.Is(err, fieldgate.ErrNoPermissions) {
		t.Fatalf("expected ErrNoPermissions after remove, got %v", err)
	}
	// Removing a missing document is not an error.
	if err := store.Remove(ctx, db, "notes"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}
