package sqlite

import (
	"strings"
)

// where accumulates AND-ed SQL conditions and their arguments. A filter
// with no values adds no condition.
type where struct {
	clauses []string
	args    []any
}

// in adds "column IN (...)"
func (w *where) in(column string, values []any) {
	if len(values) == 0 {
		return
	}
	w.clauses = append(w.clauses, column+" IN ("+placeholders(len(values))+")")
	w.args = append(w.args, values...)
}

// contains adds "(instr(column, ?) > 0 OR ...)"
func (w *where) contains(column string, values []any) {
	if len(values) == 0 {
		return
	}
	parts := make([]string, len(values))
	for i := range values {
		parts[i] = "instr(" + column + ", ?) > 0"
	}
	w.clauses = append(w.clauses, "("+strings.Join(parts, " OR ")+")")
	w.args = append(w.args, values...)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func intArgs(values []int) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func lowerAll(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
