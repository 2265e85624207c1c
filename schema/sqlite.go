package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldgate/fieldgate/query"
)

const sqliteTablesSQL = `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`

func (m *Manager) sqliteTables(ctx context.Context, q query.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, sqliteTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *Manager) sqliteTableInfo(ctx context.Context, q query.Querier, table string) (*TableInfo, error) {
	// PRAGMA arguments cannot be bound; the table name is validated by
	// the caller and quoted here.
	name, err := m.adapter.QuoteIdent(table)
	if err != nil {
		return nil, err
	}
	info := &TableInfo{Name: table}

	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+name+")")
	if err != nil {
		return nil, fmt.Errorf("schema: inspect %s: %w", table, err)
	}
	for rows.Next() {
		var (
			cid     int
			c       ColumnInfo
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return nil, err
		}
		c.Nullable = notNull == 0
		c.Default = dflt.String
		c.PrimaryKey = pk > 0
		if c.PrimaryKey {
			info.PrimaryKeys = append(info.PrimaryKeys, c.Name)
		}
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(info.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, table)
	}

	fkRows, err := q.QueryContext(ctx, "PRAGMA foreign_key_list("+name+")")
	if err != nil {
		return nil, fmt.Errorf("schema: inspect %s foreign keys: %w", table, err)
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var (
			id, seq            int
			fk                 ForeignKeyInfo
			onUpdate, onDelete string
			match              string
		)
		if err := fkRows.Scan(&id, &seq, &fk.RefTable, &fk.Column, &fk.RefColumn, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		info.ForeignKeys = append(info.ForeignKeys, fk)
	}
	return info, fkRows.Err()
}
