package store

import (
	"fmt"
	"sort"
)

var tableColumns = map[string][]string{
	TableWorkouts:        {"id", "name", "created_at"},
	TableExercises:       {"id", "name", "workout_id", "num_sets", "has_warmup", "created_at"},
	TableSets:            {"id", "exercise_id", "workout_id", "session_id", "sets", "reps", "weight", "created_at"},
	TableExerciseNotes:   {"id", "exercise_id", "note", "created_at"},
	TableWorkoutSessions: {"session_id", "workout_id", "completed_at"},
}

var primaryKeys = map[string]string{
	TableWorkouts:        "id",
	TableExercises:       "id",
	TableSets:            "id",
	TableExerciseNotes:   "id",
	TableWorkoutSessions: "session_id",
}

var columnSets = func() map[string]map[string]bool {
	sets := make(map[string]map[string]bool, len(tableColumns))
	for table, cols := range tableColumns {
		sets[table] = make(map[string]bool, len(cols))
		for _, c := range cols {
			sets[table][c] = true
		}
	}
	return sets
}()

func Tables() []string {
	tables := make([]string, 0, len(tableColumns))
	for t := range tableColumns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

func PrimaryKey(table string) string {
	return primaryKeys[table]
}

func ValidateTable(table string) error {
	if _, ok := tableColumns[table]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

func ValidateColumns(table string, columns ...string) error {
	cols, ok := columnSets[table]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	for _, c := range columns {
		if !cols[c] {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, c)
		}
	}
	return nil
}

// ValidateRow checks the table and every column of row.
func ValidateRow(table string, row Row) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	return ValidateColumns(table, row.Columns()...)
}
