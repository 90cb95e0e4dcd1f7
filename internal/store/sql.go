package store

import (
	"fmt"
	"strings"
)

// Placeholder renders the n-th (1-based) bind parameter of a dialect.
type Placeholder func(n int) string

func DollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func QuestionPlaceholder(int) string {
	return "?"
}

// Table and column names are interpolated, so every builder expects input
// that already passed Validate / ValidateRow.

func BuildSelect(q Query, ph Placeholder) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(tableColumns[q.Table], ", "), q.Table)

	where, args := buildWhere(q.Where, ph, 0)
	sb.WriteString(where)

	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts = append(parts, o.Column+" "+dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	return sb.String(), args
}

func BuildInsert(table string, row Row, ph Placeholder) (string, []any) {
	cols := row.Columns()
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = ph(i + 1)
		args[i] = row[c]
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	), args
}

func BuildUpdate(table string, where []Cond, patch Row, ph Placeholder) (string, []any) {
	cols := patch.Columns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, ph(i+1))
		args = append(args, patch[c])
	}

	whereSQL, whereArgs := buildWhere(where, ph, len(args))
	return fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), whereSQL), append(args, whereArgs...)
}

func BuildDelete(table string, where []Cond, ph Placeholder) (string, []any) {
	whereSQL, args := buildWhere(where, ph, 0)
	return fmt.Sprintf("DELETE FROM %s%s", table, whereSQL), args
}

func buildWhere(where []Cond, ph Placeholder, offset int) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return ph(offset + len(args))
	}

	parts := make([]string, 0, len(where))
	for _, c := range where {
		switch c.Op {
		case OpEq:
			parts = append(parts, fmt.Sprintf("%s = %s", c.Column, next(c.Value)))
		case OpNeq:
			parts = append(parts, fmt.Sprintf("%s <> %s", c.Column, next(c.Value)))
		case OpIn:
			if len(c.Values) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			phs := make([]string, len(c.Values))
			for i, v := range c.Values {
				phs[i] = next(v)
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(phs, ", ")))
		}
	}

	return " WHERE " + strings.Join(parts, " AND "), args
}

// ValidateWrite checks the table and the where/patch columns of an update or delete.
func ValidateWrite(table string, where []Cond, patch Row) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	for _, c := range where {
		if err := ValidateColumns(table, c.Column); err != nil {
			return err
		}
	}
	return ValidateColumns(table, patch.Columns()...)
}
