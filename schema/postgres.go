package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldgate/fieldgate/query"
)

const pgTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
ORDER BY table_name`

const pgColumnsSQL = `
SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1
ORDER BY ordinal_position`

const pgPrimaryKeysSQL = `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
WHERE tc.table_schema = 'public'
  AND tc.table_name = $1
  AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`

const pgForeignKeysSQL = `
SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
 AND ccu.table_schema = tc.table_schema
WHERE tc.table_schema = 'public'
  AND tc.table_name = $1
  AND tc.constraint_type = 'FOREIGN KEY'
ORDER BY tc.constraint_name`

func (m *Manager) pgTables(ctx context.Context, q query.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, pgTablesSQL)
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

func (m *Manager) pgTableInfo(ctx context.Context, q query.Querier, table string) (*TableInfo, error) {
	info := &TableInfo{Name: table}

	rows, err := q.QueryContext(ctx, pgColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("schema: inspect %s: %w", table, err)
	}
	for rows.Next() {
		var c ColumnInfo
		var nullable string
		if err := rows.Scan(&c.Name, &c.Type, &nullable, &c.Default); err != nil {
			rows.Close()
			return nil, err
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
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

	pkRows, err := q.QueryContext(ctx, pgPrimaryKeysSQL, table)
	if err != nil {
		return nil, fmt.Errorf("schema: inspect %s keys: %w", table, err)
	}
	pk := map[string]bool{}
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			pkRows.Close()
			return nil, err
		}
		pk[col] = true
		info.PrimaryKeys = append(info.PrimaryKeys, col)
	}
	if err := pkRows.Err(); err != nil {
		pkRows.Close()
		return nil, err
	}
	pkRows.Close()
	for i := range info.Columns {
		info.Columns[i].PrimaryKey = pk[info.Columns[i].Name]
	}

	fkRows, err := q.QueryContext(ctx, pgForeignKeysSQL, table)
	if err != nil {
		return nil, fmt.Errorf("schema: inspect %s foreign keys: %w", table, err)
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var fk ForeignKeyInfo
		if err := fkRows.Scan(&fk.Name, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, err
		}
		info.ForeignKeys = append(info.ForeignKeys, fk)
	}
	return info, fkRows.Err()
}
