package query

import (
	"fmt"
	"slices"
	"strings"
)

// table describes one ledger table: its columns and its stable order.
type table struct {
	columns []string
	orderBy string
}

// tables is the ledger schema as seen by queries.
var tables = map[string]table{
	"runs": {
		columns: []string{"id", "seq", "program", "program_hash", "tuning", "tuning_hash", "engine_version", "format_version", "start_tick", "start_state"},
		orderBy: "seq ASC, id ASC COLLATE BINARY",
	},
	"ticks": {
		columns: []string{"run_id", "tick", "digest", "state"},
		orderBy: "tick ASC",
	},
	"grants": {
		columns: []string{"run_id", "tick", "seq", "requester", "source", "property", "target", "priority", "requested", "available", "granted"},
		orderBy: "tick ASC, seq ASC",
	},
	"signal_writes": {
		columns: []string{"run_id", "tick", "seq", "machine", "name", "value"},
		orderBy: "tick ASC, seq ASC",
	},
}

// Compile converts a Select to parameterized SQL.
// Returns (sql, params, error).
//
// MANDATORY: every query includes the table's stable ORDER BY.
// MANDATORY: all values are parameterized, never interpolated.
func Compile(q Select) (string, []any, error) {
	t, ok := tables[q.From]
	if !ok {
		return "", nil, fmt.Errorf("unknown table %q", q.From)
	}
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("select from %s: no columns", q.From)
	}
	for _, c := range q.Columns {
		if !slices.Contains(t.columns, c) {
			return "", nil, fmt.Errorf("select from %s: unknown column %q", q.From, c)
		}
	}

	var where string
	var params []any
	if q.Filter != nil {
		sql, ps, err := compilePredicate(t, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = " WHERE " + sql
		params = ps
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(q.Columns, ", "),
		q.From,
		where,
		t.orderBy)
	return sql, params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: values are never interpolated - always ? placeholders.
func compilePredicate(t table, p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		if err := checkColumn(t, pred.Column); err != nil {
			return "", nil, err
		}
		param, err := toParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", pred.Column, err)
		}
		return pred.Column + " = ?", []any{param}, nil

	case Between:
		if err := checkColumn(t, pred.Column); err != nil {
			return "", nil, err
		}
		if pred.Lo > pred.Hi {
			return "", nil, fmt.Errorf("%s: empty range [%d, %d]", pred.Column, pred.Lo, pred.Hi)
		}
		return pred.Column + " BETWEEN ? AND ?", []any{pred.Lo, pred.Hi}, nil

	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, ps, err := compilePredicate(t, sub)
			if err != nil {
				return "", nil, err
			}
			if _, nested := sub.(And); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
			params = append(params, ps...)
		}
		return strings.Join(parts, " AND "), params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func checkColumn(t table, column string) error {
	if !slices.Contains(t.columns, column) {
		return fmt.Errorf("unknown column %q", column)
	}
	return nil
}

// toParam normalizes a predicate value to a SQLite parameter.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
