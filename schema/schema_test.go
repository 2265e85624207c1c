package schema

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/fieldgate/fieldgate/dialect"
)

func sqliteManager(t *testing.T) (*Manager, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	adapter, err := dialect.New(dialect.SQLite)
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	return NewManager(adapter, slog.New(slog.NewTextHandler(io.Discard, nil))), db
}

func itemsDef() *TableDef {
	return &TableDef{
		Name: "items",
		Columns: []ColumnDef{
			{Name: "id", Type: "integer", PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: "text", NotNull: true},
			{Name: "qty", Type: "integer", Default: "0"},
		},
	}
}

func TestCreateAndInspectTable(t *testing.T) {
	m, db := sqliteManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, db, itemsDef()); err != nil {
		t.Fatalf("create: %v", err)
	}

	info, err := m.TableInfo(ctx, db, "items")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Name != "items" || len(info.Columns) != 3 {
		t.Fatalf("info = %+v", info)
	}
	if len(info.PrimaryKeys) != 1 || info.PrimaryKeys[0] != "id" {
		t.Fatalf("primary keys = %v", info.PrimaryKeys)
	}
	for _, c := range info.Columns {
		if c.Name == "name" && c.Nullable {
			t.Fatal("name should be NOT NULL")
		}
	}
}

func TestCreateTableWithForeignKey(t *testing.T) {
	m, db := sqliteManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, db, itemsDef()); err != nil {
		t.Fatalf("create items: %v", err)
	}
	child := &TableDef{
		Name: "tags",
		Columns: []ColumnDef{
			{Name: "id", Type: "integer", PrimaryKey: true, AutoIncrement: true},
			{Name: "item_id", Type: "integer", NotNull: true},
		},
		ForeignKeys: []ForeignKeyDef{
			{Column: "item_id", RefTable: "items", RefColumn: "id", OnDelete: "cascade"},
		},
	}
	if err := m.CreateTable(ctx, db, child); err != nil {
		t.Fatalf("create tags: %v", err)
	}

	info, err := m.TableInfo(ctx, db, "tags")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(info.ForeignKeys) != 1 {
		t.Fatalf("foreign keys = %+v", info.ForeignKeys)
	}
	fk := info.ForeignKeys[0]
	if fk.Column != "item_id" || fk.RefTable != "items" {
		t.Fatalf("fk = %+v", fk)
	}
}

func TestTablesListing(t *testing.T) {
	m, db := sqliteManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, db, itemsDef()); err != nil {
		t.Fatalf("create: %v", err)
	}
	names, err := m.Tables(ctx, db)
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	if len(names) != 1 || names[0] != "items" {
		t.Fatalf("names = %v (internal sqlite tables must be hidden)", names)
	}
}

func TestModifyTable(t *testing.T) {
	m, db := sqliteManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, db, itemsDef()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.ModifyTable(ctx, db, "items", &Modification{
		AddColumns:    []ColumnDef{{Name: "note", Type: "text"}},
		DropColumns:   []string{"qty"},
		RenameColumns: []RenameColumn{{From: "name", To: "title"}},
	}); err != nil {
		t.Fatalf("modify: %v", err)
	}

	info, err := m.TableInfo(ctx, db, "items")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	cols := map[string]bool{}
	for _, c := range info.Columns {
		cols[c.Name] = true
	}
	if !cols["note"] || !cols["title"] || cols["qty"] || cols["name"] {
		t.Fatalf("columns after modify = %+v", info.Columns)
	}
}

func TestDropTable(t *testing.T) {
	m, db := sqliteManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, db, itemsDef()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.DropTable(ctx, db, "items"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := m.TableInfo(ctx, db, "items"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Dropping again is not an error.
	if err := m.DropTable(ctx, db, "items"); err != nil {
		t.Fatalf("second drop: %v", err)
	}
}

func TestTruncateSQLite(t *testing.T) {
	m, db := sqliteManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, db, itemsDef()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO "items" ("name") VALUES ('a'), ('b')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := m.Truncate(ctx, db, "items"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM "items"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("truncate left %d rows", n)
	}
}

func TestAlterForeignKeyUnsupportedOnSQLite(t *testing.T) {
	m, db := sqliteManager(t)
	ctx := context.Background()

	err := m.AddForeignKey(ctx, db, "items", &ForeignKeyDef{
		Column: "item_id", RefTable: "items", RefColumn: "id",
	})
	if err == nil {
		t.Fatal("adding a constraint on sqlite should error")
	}
	if err := m.DropForeignKey(ctx, db, "items", "fk_x"); err == nil {
		t.Fatal("dropping a constraint on sqlite should error")
	}
}

func TestValidateDefault(t *testing.T) {
	valid := []string{"0", "42", "-1", "3.14", "''", "'draft'", "now()", "CURRENT_TIMESTAMP", "null"}
	for _, expr := range valid {
		if err := validateDefault(expr); err != nil {
			t.Fatalf("%q should be accepted: %v", expr, err)
		}
	}
	invalid := []string{"(SELECT 1)", "1; DROP TABLE x", "'it''s'", "random()"}
	for _, expr := range invalid {
		if err := validateDefault(expr); err == nil {
			t.Fatalf("%q should be rejected", expr)
		}
	}
}

func TestColumnTypeMapping(t *testing.T) {
	pg, err := dialect.New(dialect.Postgres)
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	m := NewManager(pg, nil)

	typ, err := m.columnType(ColumnDef{Name: "id", Type: "integer", PrimaryKey: true, AutoIncrement: true})
	if err != nil || typ != "BIGSERIAL" {
		t.Fatalf("pg auto-increment pk = %q, %v", typ, err)
	}
	typ, err = m.columnType(ColumnDef{Name: "meta", Type: "json"})
	if err != nil || typ != "JSONB" {
		t.Fatalf("pg json = %q, %v", typ, err)
	}
	if _, err := m.columnType(ColumnDef{Name: "x", Type: "uuid_v9"}); err == nil {
		t.Fatal("unknown portable type should error")
	}
}
