package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2beens/gymlog/internal/store"
)

func TestBuildSelect(t *testing.T) {
	q := store.Query{
		Table: store.TableSets,
		Where: []store.Cond{
			store.Eq("exercise_id", "ex-1"),
			store.Neq("session_id", "s-1"),
		},
		OrderBy: []store.Order{store.Desc("created_at")},
		Limit:   4,
	}

	sql, args := store.BuildSelect(q, store.DollarPlaceholder)
	assert.Equal(t,
		"SELECT id, exercise_id, workout_id, session_id, sets, reps, weight, created_at FROM sets"+
			" WHERE exercise_id = $1 AND session_id <> $2 ORDER BY created_at DESC LIMIT 4",
		sql,
	)
	assert.Equal(t, []any{"ex-1", "s-1"}, args)
}

func TestBuildSelect_In(t *testing.T) {
	q := store.Query{
		Table: store.TableExercises,
		Where: []store.Cond{store.In("id", "a", "b", "c")},
	}
	sql, args := store.BuildSelect(q, store.QuestionPlaceholder)
	assert.Equal(t, "SELECT id, name, workout_id, num_sets, has_warmup, created_at FROM exercises WHERE id IN (?, ?, ?)", sql)
	assert.Equal(t, []any{"a", "b", "c"}, args)

	q.Where = []store.Cond{store.In("id")}
	sql, args = store.BuildSelect(q, store.QuestionPlaceholder)
	assert.Equal(t, "SELECT id, name, workout_id, num_sets, has_warmup, created_at FROM exercises WHERE 1 = 0", sql)
	assert.Empty(t, args)
}

func TestBuildInsert(t *testing.T) {
	sql, args := store.BuildInsert(store.TableWorkouts, store.Row{
		"name": "Push",
		"id":   "w-1",
	}, store.DollarPlaceholder)
	assert.Equal(t, "INSERT INTO workouts (id, name) VALUES ($1, $2)", sql)
	assert.Equal(t, []any{"w-1", "Push"}, args)
}

func TestBuildUpdate(t *testing.T) {
	sql, args := store.BuildUpdate(
		store.TableExercises,
		[]store.Cond{store.Eq("id", "ex-1")},
		store.Row{"name": "Bench", "num_sets": 5},
		store.DollarPlaceholder,
	)
	assert.Equal(t, "UPDATE exercises SET name = $1, num_sets = $2 WHERE id = $3", sql)
	assert.Equal(t, []any{"Bench", 5, "ex-1"}, args)
}

func TestBuildDelete(t *testing.T) {
	sql, args := store.BuildDelete(store.TableWorkouts, []store.Cond{store.Eq("id", "w-1")}, store.DollarPlaceholder)
	assert.Equal(t, "DELETE FROM workouts WHERE id = $1", sql)
	assert.Equal(t, []any{"w-1"}, args)
}
