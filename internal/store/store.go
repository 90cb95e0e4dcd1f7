// Package store is the narrow record-store interface the engine reads and
// writes through: select/insert/update/delete over a fixed set of tables.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrConflict      = errors.New("record already exists")
	ErrReference     = errors.New("referenced record does not exist")
)

const (
	TableWorkouts        = "workouts"
	TableExercises       = "exercises"
	TableSets            = "sets"
	TableExerciseNotes   = "exercise_notes"
	TableWorkoutSessions = "workout_sessions"
)

// Row is a single record keyed by column name.
type Row map[string]any

type Store interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) error
	Update(ctx context.Context, table string, where []Cond, patch Row) (int64, error)
	Delete(ctx context.Context, table string, where []Cond) (int64, error)
	Close() error
}

type Op int

const (
	OpEq Op = iota
	OpNeq
	OpIn
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpIn:
		return "IN"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

type Cond struct {
	Column string
	Op     Op
	Value  any
	Values []any // OpIn only
}

func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: OpEq, Value: value}
}

func Neq(column string, value any) Cond {
	return Cond{Column: column, Op: OpNeq, Value: value}
}

// In matches rows whose column equals any of values. No values, no match.
func In(column string, values ...any) Cond {
	return Cond{Column: column, Op: OpIn, Values: values}
}

type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order {
	return Order{Column: column}
}

func Desc(column string) Order {
	return Order{Column: column, Desc: true}
}

type Query struct {
	Table   string
	Where   []Cond
	OrderBy []Order
	Limit   int // 0 = no limit
}

func (q Query) Validate() error {
	if err := ValidateTable(q.Table); err != nil {
		return err
	}
	for _, c := range q.Where {
		if err := ValidateColumns(q.Table, c.Column); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if err := ValidateColumns(q.Table, o.Column); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit: %d", q.Limit)
	}
	return nil
}
