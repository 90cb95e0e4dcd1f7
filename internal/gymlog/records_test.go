package gymlog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/store"
	"github.com/2beens/gymlog/internal/store/memstore"
)

func TestRecords_Workouts(t *testing.T) {
	ctx := context.Background()
	records := gymlog.NewRecords(memstore.New())

	name := gofakeit.AppName()
	w, err := records.AddWorkout(ctx, "  "+name+" ")
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, name, w.Name)
	assert.False(t, w.CreatedAt.IsZero())

	_, err = records.AddWorkout(ctx, "Second")
	require.NoError(t, err)

	workouts, err := records.ListWorkouts(ctx)
	require.NoError(t, err)
	require.Len(t, workouts, 2)
	assert.Equal(t, name, workouts[0].Name)
	assert.Equal(t, "Second", workouts[1].Name)

	require.NoError(t, records.RenameWorkout(ctx, w.ID, "Renamed"))
	got, err := records.GetWorkout(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	assert.ErrorIs(t, records.RenameWorkout(ctx, "missing", "x"), gymlog.ErrWorkoutNotFound)
	assert.ErrorIs(t, records.DeleteWorkout(ctx, "missing"), gymlog.ErrWorkoutNotFound)
	require.NoError(t, records.DeleteWorkout(ctx, w.ID))
	_, err = records.GetWorkout(ctx, w.ID)
	assert.ErrorIs(t, err, gymlog.ErrWorkoutNotFound)
}

func TestRecords_EmptyNamesRejectedBeforeStore(t *testing.T) {
	ctx := context.Background()
	records := gymlog.NewRecords(&explodingStore{})

	_, err := records.AddWorkout(ctx, "   ")
	assert.ErrorIs(t, err, gymlog.ErrEmptyName)
	assert.ErrorIs(t, records.RenameWorkout(ctx, "w", ""), gymlog.ErrEmptyName)
	_, err = records.AddExercise(ctx, gymlog.Exercise{WorkoutID: "w", Name: "\t"})
	assert.ErrorIs(t, err, gymlog.ErrEmptyName)
	assert.ErrorIs(t, records.UpdateExercise(ctx, gymlog.Exercise{ID: "e"}), gymlog.ErrEmptyName)
}

func TestRecords_Exercises(t *testing.T) {
	ctx := context.Background()
	records := gymlog.NewRecords(memstore.New())

	w, err := records.AddWorkout(ctx, "Legs")
	require.NoError(t, err)

	squat, err := records.AddExercise(ctx, gymlog.Exercise{WorkoutID: w.ID, Name: "Squat", HasWarmup: true})
	require.NoError(t, err)
	assert.Equal(t, gymlog.DefaultNumSets, squat.NumSets)
	assert.Equal(t, 5, squat.SlotCount())

	lunge, err := records.AddExercise(ctx, gymlog.Exercise{WorkoutID: w.ID, Name: "Lunge", NumSets: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, lunge.SlotCount())

	list, err := records.ListExercises(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Squat", list[0].Name)
	assert.True(t, list[0].HasWarmup)

	lunge.Name = "Walking lunge"
	lunge.HasWarmup = true
	require.NoError(t, records.UpdateExercise(ctx, *lunge))
	got, err := records.GetExercise(ctx, lunge.ID)
	require.NoError(t, err)
	assert.Equal(t, "Walking lunge", got.Name)
	assert.True(t, got.HasWarmup)
	assert.Equal(t, 3, got.NumSets)

	byIDs, err := records.ExercisesByIDs(ctx, []string{squat.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	assert.Equal(t, squat.ID, byIDs[0].ID)

	require.NoError(t, records.DeleteExercise(ctx, squat.ID))
	_, err = records.GetExercise(ctx, squat.ID)
	assert.ErrorIs(t, err, gymlog.ErrExerciseNotFound)
}

func TestRecords_SetsNotesSessions(t *testing.T) {
	ctx := context.Background()
	records := gymlog.NewRecords(memstore.New())

	w, err := records.AddWorkout(ctx, "Push")
	require.NoError(t, err)
	bench, err := records.AddExercise(ctx, gymlog.Exercise{WorkoutID: w.ID, Name: "Bench"})
	require.NoError(t, err)

	for _, s := range []gymlog.Set{
		{ExerciseID: bench.ID, WorkoutID: w.ID, SessionID: "s-1", Slot: 1, Reps: 5, Weight: 80},
		{ExerciseID: bench.ID, WorkoutID: w.ID, SessionID: "s-1", Slot: 2, Reps: 5, Weight: 82.5},
		{ExerciseID: bench.ID, WorkoutID: w.ID, SessionID: "s-2", Slot: 1, Reps: 6, Weight: 80},
	} {
		_, err := records.AddSet(ctx, s)
		require.NoError(t, err)
	}

	_, err = records.AddSet(ctx, gymlog.Set{ExerciseID: bench.ID, WorkoutID: w.ID, SessionID: "s-2", Reps: -1})
	assert.Error(t, err)

	s1, err := records.SetsBySession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, 82.5, s1[1].Weight)
	assert.Equal(t, 2, s1[1].Slot)

	history, err := records.ExerciseHistory(ctx, bench.ID, "s-2")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	all, err := records.SetsByWorkout(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	both, err := records.SetsBySessions(ctx, []string{"s-1", "s-2"})
	require.NoError(t, err)
	assert.Len(t, both, 3)

	note, err := records.LatestNote(ctx, bench.ID)
	require.NoError(t, err)
	assert.Nil(t, note)

	_, err = records.AddNote(ctx, bench.ID, "elbows in")
	require.NoError(t, err)
	_, err = records.AddNote(ctx, bench.ID, "pause on chest")
	require.NoError(t, err)
	note, err = records.LatestNote(ctx, bench.ID)
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "pause on chest", note.Note)

	last, err := records.LastCompleted(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	ws, err := records.AddWorkoutSession(ctx, "s-1", w.ID)
	require.NoError(t, err)
	_, err = records.AddWorkoutSession(ctx, "s-1", w.ID)
	assert.ErrorIs(t, err, store.ErrConflict)

	last, err = records.LastCompleted(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, ws.CompletedAt.Equal(*last))

	sessions, err := records.ListWorkoutSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s-1", sessions[0].SessionID)
}

// explodingStore errors on any call, so a validation error proves no store call happened.
type explodingStore struct {
	store.Store
}

func (s *explodingStore) Select(context.Context, store.Query) ([]store.Row, error) {
	return nil, errors.New("unexpected select")
}

func (s *explodingStore) Insert(context.Context, string, store.Row) error {
	return errors.New("unexpected insert")
}

func (s *explodingStore) Update(context.Context, string, []store.Cond, store.Row) (int64, error) {
	return 0, errors.New("unexpected update")
}
