// Package schema provides table DDL and introspection for the data
// layer: create/drop/modify tables, foreign keys, truncation, and
// column/key inspection on Postgres and SQLite.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldgate/fieldgate/dialect"
	"github.com/fieldgate/fieldgate/query"
)

// ErrNotFound reports introspection of a table that does not exist.
var ErrNotFound = errors.New("schema: table not found")

// ColumnDef describes one column of a table to create or modify.
// Type is a portable name (string, text, integer, bigint, float,
// boolean, json, timestamp, date) mapped to the engine's native type.
type ColumnDef struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	PrimaryKey    bool   `json:"primaryKey,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	NotNull       bool   `json:"notNull,omitempty"`
	Unique        bool   `json:"unique,omitempty"`
	Default       string `json:"default,omitempty"`
}

// ForeignKeyDef describes a foreign key declared at creation or added
// later (Postgres only for the latter).
type ForeignKeyDef struct {
	Name      string `json:"name,omitempty"`
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
	OnDelete  string `json:"onDelete,omitempty"`
	OnUpdate  string `json:"onUpdate,omitempty"`
}

// TableDef is the input to CreateTable.
type TableDef struct {
	Name        string          `json:"name"`
	Columns     []ColumnDef     `json:"columns"`
	ForeignKeys []ForeignKeyDef `json:"foreignKeys,omitempty"`
}

// ColumnInfo is one introspected column.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primaryKey"`
}

// ForeignKeyInfo is one introspected foreign key.
type ForeignKeyInfo struct {
	Name      string `json:"name,omitempty"`
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
}

// TableInfo is the introspected shape of one table.
type TableInfo struct {
	Name        string           `json:"name"`
	Columns     []ColumnInfo     `json:"columns"`
	PrimaryKeys []string         `json:"primaryKeys"`
	ForeignKeys []ForeignKeyInfo `json:"foreignKeys"`
}

// RenameColumn is one column rename inside a Modification.
type RenameColumn struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Modification describes an in-place table change.
type Modification struct {
	AddColumns    []ColumnDef    `json:"addColumns,omitempty"`
	DropColumns   []string       `json:"dropColumns,omitempty"`
	RenameColumns []RenameColumn `json:"renameColumns,omitempty"`
}

// Manager executes DDL and introspection through a Querier.
type Manager struct {
	adapter dialect.Adapter
	logger  *slog.Logger
}

// NewManager creates a schema manager for the given adapter.
func NewManager(a dialect.Adapter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{adapter: a, logger: logger}
}

// portableTypes maps portable column type names per dialect.
var portableTypes = map[dialect.Dialect]map[string]string{
	dialect.Postgres: {
		"string": "TEXT", "text": "TEXT", "integer": "INTEGER",
		"bigint": "BIGINT", "float": "DOUBLE PRECISION", "boolean": "BOOLEAN",
		"json": "JSONB", "timestamp": "TIMESTAMPTZ", "date": "DATE",
	},
	dialect.SQLite: {
		"string": "TEXT", "text": "TEXT", "integer": "INTEGER",
		"bigint": "INTEGER", "float": "REAL", "boolean": "INTEGER",
		"json": "TEXT", "timestamp": "TEXT", "date": "TEXT",
	},
}

func (m *Manager) columnType(c ColumnDef) (string, error) {
	if c.AutoIncrement && c.PrimaryKey {
		switch m.adapter.Dialect() {
		case dialect.Postgres:
			return "BIGSERIAL", nil
		default:
			// SQLite rowid aliasing: INTEGER PRIMARY KEY autoincrements.
			return "INTEGER", nil
		}
	}
	t, ok := portableTypes[m.adapter.Dialect()][strings.ToLower(c.Type)]
	if !ok {
		return "", fmt.Errorf("schema: unsupported column type %q", c.Type)
	}
	return t, nil
}

// CreateTable creates the table described by def.
func (m *Manager) CreateTable(ctx context.Context, q query.Querier, def *TableDef) error {
	if def == nil || len(def.Columns) == 0 {
		return fmt.Errorf("schema: table definition requires columns")
	}
	name, err := m.adapter.QuoteIdent(def.Name)
	if err != nil {
		return err
	}

	var parts []string
	var pks []string
	for _, c := range def.Columns {
		col, err := m.columnClause(c)
		if err != nil {
			return err
		}
		parts = append(parts, col)
		if c.PrimaryKey && !c.AutoIncrement {
			qc, err := m.adapter.QuoteIdent(c.Name)
			if err != nil {
				return err
			}
			pks = append(pks, qc)
		}
	}
	if len(pks) > 0 {
		parts = append(parts, "PRIMARY KEY ("+strings.Join(pks, ", ")+")")
	}
	for _, fk := range def.ForeignKeys {
		clause, err := m.foreignKeyClause(fk)
		if err != nil {
			return err
		}
		parts = append(parts, clause)
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(parts, ", "))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("schema: create table %s: %w", def.Name, err)
	}
	m.logger.Info("table created", "table", def.Name)
	return nil
}

func (m *Manager) columnClause(c ColumnDef) (string, error) {
	name, err := m.adapter.QuoteIdent(c.Name)
	if err != nil {
		return "", err
	}
	typ, err := m.columnType(c)
	if err != nil {
		return "", err
	}
	clause := name + " " + typ
	if c.PrimaryKey && c.AutoIncrement {
		clause += " PRIMARY KEY"
		if m.adapter.Dialect() == dialect.SQLite {
			clause += " AUTOINCREMENT"
		}
	}
	if c.NotNull && !c.PrimaryKey {
		clause += " NOT NULL"
	}
	if c.Unique && !c.PrimaryKey {
		clause += " UNIQUE"
	}
	if c.Default != "" {
		if err := validateDefault(c.Default); err != nil {
			return "", err
		}
		clause += " DEFAULT " + c.Default
	}
	return clause, nil
}

// defaultAllowed whitelists default expressions; arbitrary SQL is not
// accepted from callers.
var defaultAllowed = map[string]bool{
	"now()": true, "current_timestamp": true, "true": true, "false": true,
	"null": true, "0": true, "''": true, "'{}'": true, "'[]'": true,
}

func validateDefault(expr string) error {
	e := strings.ToLower(strings.TrimSpace(expr))
	if defaultAllowed[e] {
		return nil
	}
	// Bare numbers and single-quoted literals without embedded quotes.
	if isNumber(e) {
		return nil
	}
	if len(e) >= 2 && e[0] == '\'' && e[len(e)-1] == '\'' && !strings.Contains(e[1:len(e)-1], "'") {
		return nil
	}
	return fmt.Errorf("schema: unsupported default expression %q", expr)
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		if r == '-' && i == 0 {
			continue
		}
		if r == '.' && !dot {
			dot = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var fkActions = map[string]bool{
	"": true, "CASCADE": true, "SET NULL": true, "RESTRICT": true, "NO ACTION": true,
}

func (m *Manager) foreignKeyClause(fk ForeignKeyDef) (string, error) {
	col, err := m.adapter.QuoteIdent(fk.Column)
	if err != nil {
		return "", err
	}
	refTable, err := m.adapter.QuoteIdent(fk.RefTable)
	if err != nil {
		return "", err
	}
	refCol, err := m.adapter.QuoteIdent(fk.RefColumn)
	if err != nil {
		return "", err
	}
	clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", col, refTable, refCol)
	onDelete := strings.ToUpper(fk.OnDelete)
	onUpdate := strings.ToUpper(fk.OnUpdate)
	if !fkActions[onDelete] || !fkActions[onUpdate] {
		return "", fmt.Errorf("schema: invalid foreign key action")
	}
	if onDelete != "" {
		clause += " ON DELETE " + onDelete
	}
	if onUpdate != "" {
		clause += " ON UPDATE " + onUpdate
	}
	return clause, nil
}

// DropTable removes the table.
func (m *Manager) DropTable(ctx context.Context, q query.Querier, table string) error {
	name, err := m.adapter.QuoteIdent(table)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("schema: drop table %s: %w", table, err)
	}
	m.logger.Info("table dropped", "table", table)
	return nil
}

// ModifyTable applies adds, drops, and renames in that order.
func (m *Manager) ModifyTable(ctx context.Context, q query.Querier, table string, mod *Modification) error {
	name, err := m.adapter.QuoteIdent(table)
	if err != nil {
		return err
	}
	for _, c := range mod.AddColumns {
		clause, err := m.columnClause(c)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", name, clause)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: add column on %s: %w", table, err)
		}
	}
	for _, colName := range mod.DropColumns {
		col, err := m.adapter.QuoteIdent(colName)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", name, col)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: drop column on %s: %w", table, err)
		}
	}
	for _, rn := range mod.RenameColumns {
		from, err := m.adapter.QuoteIdent(rn.From)
		if err != nil {
			return err
		}
		to, err := m.adapter.QuoteIdent(rn.To)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", name, from, to)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: rename column on %s: %w", table, err)
		}
	}
	return nil
}

// AddForeignKey adds a named foreign key constraint. SQLite cannot add
// constraints after creation, so this errors on that dialect.
func (m *Manager) AddForeignKey(ctx context.Context, q query.Querier, table string, fk *ForeignKeyDef) error {
	if !m.adapter.Supports(dialect.FeatureAlterForeignKey) {
		return fmt.Errorf("schema: %s does not support adding foreign keys after creation", m.adapter.Dialect())
	}
	name, err := m.adapter.QuoteIdent(table)
	if err != nil {
		return err
	}
	cname := fk.Name
	if cname == "" {
		cname = fmt.Sprintf("fk_%s_%s", table, fk.Column)
	}
	constraint, err := m.adapter.QuoteIdent(cname)
	if err != nil {
		return err
	}
	clause, err := m.foreignKeyClause(*fk)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", name, constraint, clause)
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("schema: add foreign key on %s: %w", table, err)
	}
	return nil
}

// DropForeignKey drops a named foreign key constraint (Postgres only).
func (m *Manager) DropForeignKey(ctx context.Context, q query.Querier, table, constraint string) error {
	if !m.adapter.Supports(dialect.FeatureAlterForeignKey) {
		return fmt.Errorf("schema: %s does not support dropping foreign keys", m.adapter.Dialect())
	}
	name, err := m.adapter.QuoteIdent(table)
	if err != nil {
		return err
	}
	cname, err := m.adapter.QuoteIdent(constraint)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", name, cname)
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("schema: drop foreign key on %s: %w", table, err)
	}
	return nil
}

// Truncate removes all rows. SQLite has no TRUNCATE; DELETE is used.
func (m *Manager) Truncate(ctx context.Context, q query.Querier, table string) error {
	name, err := m.adapter.QuoteIdent(table)
	if err != nil {
		return err
	}
	stmt := "TRUNCATE TABLE " + name
	if m.adapter.Dialect() == dialect.SQLite {
		stmt = "DELETE FROM " + name
	}
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("schema: truncate %s: %w", table, err)
	}
	return nil
}

// Tables lists user tables, excluding engine internals.
func (m *Manager) Tables(ctx context.Context, q query.Querier) ([]string, error) {
	switch m.adapter.Dialect() {
	case dialect.Postgres:
		return m.pgTables(ctx, q)
	default:
		return m.sqliteTables(ctx, q)
	}
}

// TableInfo introspects one table: columns, primary keys, foreign keys.
func (m *Manager) TableInfo(ctx context.Context, q query.Querier, table string) (*TableInfo, error) {
	if !dialect.ValidIdent(table) {
		return nil, fmt.Errorf("schema: invalid table name %q", table)
	}
	switch m.adapter.Dialect() {
	case dialect.Postgres:
		return m.pgTableInfo(ctx, q, table)
	default:
		return m.sqliteTableInfo(ctx, q, table)
	}
}
