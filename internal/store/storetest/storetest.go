// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymlog/internal/store"
)

// Run exercises s against a fresh, empty schema.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("insert and select with order and limit", func(t *testing.T) {
		testInsertSelect(t, newStore(t))
	})
	t.Run("neq and in filters", func(t *testing.T) {
		testFilters(t, newStore(t))
	})
	t.Run("update and delete", func(t *testing.T) {
		testUpdateDelete(t, newStore(t))
	})
	t.Run("duplicate primary key", func(t *testing.T) {
		testConflict(t, newStore(t))
	})
	t.Run("unknown columns rejected", func(t *testing.T) {
		testValidation(t, newStore(t))
	})
}

func workoutRow(name string, createdAt time.Time) store.Row {
	return store.Row{
		"id":         uuid.NewString(),
		"name":       name,
		"created_at": createdAt,
	}
}

func exerciseRow(workoutID string) store.Row {
	return store.Row{
		"id":         uuid.NewString(),
		"name":       gofakeit.HipsterWord(),
		"workout_id": workoutID,
		"num_sets":   4,
		"has_warmup": true,
		"created_at": time.Now().UTC(),
	}
}

func setRow(exerciseID, workoutID, sessionID string, slot, reps int, weight float64, createdAt time.Time) store.Row {
	return store.Row{
		"id":          uuid.NewString(),
		"exercise_id": exerciseID,
		"workout_id":  workoutID,
		"session_id":  sessionID,
		"sets":        slot,
		"reps":        reps,
		"weight":      weight,
		"created_at":  createdAt,
	}
}

func testInsertSelect(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	names := []string{"Pull", "Push", "Legs"}
	for i, name := range names {
		require.NoError(t, s.Insert(ctx, store.TableWorkouts, workoutRow(name, base.Add(time.Duration(i)*time.Minute))))
	}

	rows, err := s.Select(ctx, store.Query{
		Table:   store.TableWorkouts,
		OrderBy: []store.Order{store.Asc("created_at")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, names[i], r.String("name"))
		assert.True(t, base.Add(time.Duration(i)*time.Minute).Equal(r.Time("created_at")))
	}

	rows, err = s.Select(ctx, store.Query{
		Table:   store.TableWorkouts,
		OrderBy: []store.Order{store.Desc("created_at")},
		Limit:   1,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Legs", rows[0].String("name"))

	w := workoutRow("Upper", base)
	require.NoError(t, s.Insert(ctx, store.TableWorkouts, w))
	ex := exerciseRow(w.String("id"))
	require.NoError(t, s.Insert(ctx, store.TableExercises, ex))

	rows, err = s.Select(ctx, store.Query{
		Table: store.TableExercises,
		Where: []store.Cond{store.Eq("id", ex.String("id"))},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Int("num_sets"))
	assert.True(t, rows[0].Bool("has_warmup"))
	assert.Equal(t, w.String("id"), rows[0].String("workout_id"))
}

func testFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	w := workoutRow("Legs", base)
	require.NoError(t, s.Insert(ctx, store.TableWorkouts, w))
	workoutID := w.String("id")
	ex := exerciseRow(workoutID)
	require.NoError(t, s.Insert(ctx, store.TableExercises, ex))
	exID := ex.String("id")

	require.NoError(t, s.Insert(ctx, store.TableSets, setRow(exID, workoutID, "s-old", 1, 5, 60, base.Add(-48*time.Hour))))
	require.NoError(t, s.Insert(ctx, store.TableSets, setRow(exID, workoutID, "s-old", 2, 5, 62.5, base.Add(-47*time.Hour))))
	require.NoError(t, s.Insert(ctx, store.TableSets, setRow(exID, workoutID, "s-new", 1, 6, 60, base)))

	history, err := s.Select(ctx, store.Query{
		Table: store.TableSets,
		Where: []store.Cond{
			store.Eq("exercise_id", exID),
			store.Neq("session_id", "s-new"),
		},
		OrderBy: []store.Order{store.Asc("created_at")},
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 62.5, history[1].Float("weight"))
	assert.Equal(t, 2, history[1].Int("sets"))

	both, err := s.Select(ctx, store.Query{
		Table: store.TableSets,
		Where: []store.Cond{store.In("session_id", "s-old", "s-new", "s-missing")},
	})
	require.NoError(t, err)
	assert.Len(t, both, 3)

	none, err := s.Select(ctx, store.Query{
		Table: store.TableSets,
		Where: []store.Cond{store.In("session_id")},
	})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testUpdateDelete(t *testing.T, s store.Store) {
	ctx := context.Background()

	w := workoutRow("Push", time.Now().UTC())
	require.NoError(t, s.Insert(ctx, store.TableWorkouts, w))
	id := w.String("id")

	affected, err := s.Update(ctx, store.TableWorkouts, []store.Cond{store.Eq("id", id)}, store.Row{"name": "Push A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := s.Select(ctx, store.Query{Table: store.TableWorkouts, Where: []store.Cond{store.Eq("id", id)}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Push A", rows[0].String("name"))

	affected, err = s.Update(ctx, store.TableWorkouts, []store.Cond{store.Eq("id", "missing")}, store.Row{"name": "x"})
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = s.Delete(ctx, store.TableWorkouts, []store.Cond{store.Eq("id", id)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err = s.Select(ctx, store.Query{Table: store.TableWorkouts})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testConflict(t *testing.T, s store.Store) {
	ctx := context.Background()

	w := workoutRow("Push", time.Now().UTC())
	require.NoError(t, s.Insert(ctx, store.TableWorkouts, w))

	session := store.Row{
		"session_id":   uuid.NewString(),
		"workout_id":   w.String("id"),
		"completed_at": time.Now().UTC(),
	}
	require.NoError(t, s.Insert(ctx, store.TableWorkoutSessions, session))
	err := s.Insert(ctx, store.TableWorkoutSessions, session)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func testValidation(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.Insert(ctx, store.TableWorkouts, store.Row{"id": "x", "color": "red"})
	assert.ErrorIs(t, err, store.ErrUnknownColumn)

	_, err = s.Select(ctx, store.Query{Table: "users"})
	assert.ErrorIs(t, err, store.ErrUnknownTable)

	_, err = s.Delete(ctx, store.TableSets, []store.Cond{store.Eq("bogus", 1)})
	assert.ErrorIs(t, err, store.ErrUnknownColumn)
}
