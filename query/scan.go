package query

import (
	"database/sql"
	"fmt"
	"time"
)

// ScanRows drains rows into Row maps, normalizing driver values to the
// closed set string / int64 / float64 / bool / time.Time / nil. Byte
// slices become strings so JSON columns round-trip as text instead of
// leaking driver buffers.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query: columns: %w", err)
	}

	out := []Row{}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query: scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: rows: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case bool, int64, float64, string, time.Time:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return fmt.Sprint(x)
	}
}
