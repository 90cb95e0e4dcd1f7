package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/gymlog/session"
	"github.com/2beens/gymlog/internal/store"
)

func TestMachine_FullSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	legs := f.addWorkout(t, "Legs")
	squat := f.addExercise(t, legs.ID, "Squat", 2, true)

	assert.Equal(t, session.StateHome, f.machine.Current().State)

	v, err := f.machine.LoadStartWorkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateStartWorkout, v.State)
	require.Len(t, v.Workouts, 1)
	assert.Nil(t, v.Workouts[0].LastCompleted)
	assert.False(t, v.CanFinish)

	v, err = f.machine.StartWorkoutSession(ctx, legs.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateWorkoutExercises, v.State)
	assert.NotEmpty(t, v.SessionID)
	assert.False(t, v.SessionHasSavedSets)
	assert.True(t, v.CanFinish)
	require.Len(t, v.Exercises, 1)
	sessionID := v.SessionID

	v, err = f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateExerciseDetail, v.State)
	require.NotNil(t, v.Detail)
	require.Len(t, v.Detail.Slots, 3)
	assert.Equal(t, "Warm-up", v.Detail.Slots[0].Label)
	assert.Equal(t, "Set 1", v.Detail.Slots[1].Label)
	assert.Equal(t, "-", v.Detail.Slots[1].PreviousText)
	assert.Len(t, v.Detail.Draft.Slots, 3)

	_, err = f.machine.UpdateDraft(ctx, session.Draft{
		Slots: []session.DraftSlot{{Reps: 10, Weight: 20}, {Reps: 5, Weight: 50}, {Reps: 3, Weight: 55}},
		Note:  "keep the back straight",
	})
	require.NoError(t, err)

	v, err = f.machine.SaveExerciseEntry(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Saved!", v.Message)
	assert.True(t, v.SessionHasSavedSets)
	require.NotNil(t, v.Detail.SessionPB)
	assert.True(t, *v.Detail.SessionPB, "first ever performance")
	assert.Equal(t, "keep the back straight", v.Detail.Draft.Note)
	assert.True(t, v.Detail.Draft.Slots[1].IsEmpty(), "draft cleared after save")
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CounterSetsSaved))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterNotesSaved))

	// nothing unsaved, so no prompt is needed
	v, err = f.machine.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateWorkoutExercises, v.State)
	assert.Equal(t, sessionID, v.SessionID)

	v, err = f.machine.FinishSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateHome, v.State)
	assert.Empty(t, v.SessionID)
	assert.False(t, v.SessionHasSavedSets)
	require.NotNil(t, v.Summary)
	assert.Equal(t, []string{"Squat"}, v.Summary.PersonalBests)
	assert.Equal(t, "Workout finished!\nPBs today: 1\n\n• Squat", v.Message)

	v, err = f.machine.LoadPreviousWorkouts(ctx)
	require.NoError(t, err)
	require.Len(t, v.Previous, 1)
	assert.Equal(t, sessionID, v.Previous[0].SessionID)
	assert.Equal(t, "Legs", v.Previous[0].WorkoutName)
	assert.Equal(t, 3, v.Previous[0].SetCount)

	// the next session shows what was done last time
	v = f.startSession(t, legs.ID)
	assert.NotEqual(t, sessionID, v.SessionID)
	v, err = f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	assert.Equal(t, "5 × 50kg", v.Detail.Slots[1].PreviousText)
	assert.Equal(t, "3 × 55kg", v.Detail.Slots[2].PreviousText)
	assert.Equal(t, "keep the back straight", v.Detail.Note)

	// the start screen now knows when the workout was last completed
	_, err = f.machine.Home(ctx)
	require.NoError(t, err)
	v, err = f.machine.LoadStartWorkout(ctx)
	require.NoError(t, err)
	require.Len(t, v.Workouts, 1)
	assert.NotNil(t, v.Workouts[0].LastCompleted)
}

func TestMachine_WorkoutWithoutExercisesCannotFinish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	empty := f.addWorkout(t, "Empty")

	v := f.startSession(t, empty.ID)
	assert.False(t, v.CanFinish)
	assert.Empty(t, v.Exercises)

	_, err := f.machine.FinishSession(ctx)
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
	assert.Equal(t, session.StateWorkoutExercises, f.machine.Current().State)
}

func TestMachine_FinishWithNothingLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	w := f.addWorkout(t, "Push")
	f.addExercise(t, w.ID, "Bench", 3, false)

	v := f.startSession(t, w.ID)
	sessionID := v.SessionID

	v, err := f.machine.FinishSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, v.Summary)
	assert.True(t, v.Summary.NothingLogged)
	assert.Empty(t, v.Summary.PersonalBests)

	sessions, err := f.records.ListWorkoutSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sessionID, sessions[0].SessionID)
}

func TestMachine_FinishNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.NeverConfirm)
	w := f.addWorkout(t, "Push")
	f.addExercise(t, w.ID, "Bench", 3, false)
	v := f.startSession(t, w.ID)

	_, err := f.machine.FinishSession(ctx)
	require.ErrorIs(t, err, session.ErrNotConfirmed)
	assert.Equal(t, v.SessionID, f.machine.Current().SessionID)

	sessions, err := f.records.ListWorkoutSessions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// a per call confirmer overrides the machine's
	v, err = f.machine.FinishSession(session.WithConfirmer(ctx, session.AlwaysConfirm))
	require.NoError(t, err)
	assert.Equal(t, session.StateHome, v.State)
}

func TestMachine_FinishFetchErrorKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	w := f.addWorkout(t, "Pull")
	f.addExercise(t, w.ID, "Row", 3, false)
	v := f.startSession(t, w.ID)

	errDB := errors.New("connection reset")
	f.store.setOnSelect(func(q store.Query) error {
		if q.Table == store.TableSets && condValue(q, "session_id") != nil {
			return errDB
		}
		return nil
	})

	got, err := f.machine.FinishSession(ctx)
	require.ErrorIs(t, err, errDB)
	assert.Equal(t, session.StateWorkoutExercises, got.State)
	assert.Equal(t, v.SessionID, got.SessionID)
	assert.Contains(t, got.Error, "connection reset")

	f.store.setOnSelect(nil)
	got, err = f.machine.FinishSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateHome, got.State)
}

func TestMachine_BackGuards(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	confirmerMock := NewMockConfirmer(ctrl)
	f := newFixture(t, confirmerMock)

	w := f.addWorkout(t, "Legs")
	squat := f.addExercise(t, w.ID, "Squat", 3, false)
	v := f.startSession(t, w.ID)
	sessionID := v.SessionID

	_, err := f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Slots: []session.DraftSlot{{Reps: 5, Weight: 100}}})
	require.NoError(t, err)

	// unsaved draft: declined
	confirmerMock.EXPECT().Confirm(gomock.Any(), session.PromptDiscardDraft).Return(false, nil)
	v, err = f.machine.Back(ctx)
	require.ErrorIs(t, err, session.ErrNotConfirmed)
	assert.Equal(t, session.StateExerciseDetail, v.State)
	assert.Equal(t, 5, v.Detail.Draft.Slots[0].Reps)

	// saved: the draft is clean again
	v, err = f.machine.SaveExerciseEntry(ctx)
	require.NoError(t, err)
	assert.True(t, v.SessionHasSavedSets)
	v, err = f.machine.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateWorkoutExercises, v.State)

	// leaving the session with saved sets: declined
	confirmerMock.EXPECT().Confirm(gomock.Any(), session.PromptAbandonSession).Return(false, nil)
	v, err = f.machine.Back(ctx)
	require.ErrorIs(t, err, session.ErrNotConfirmed)
	assert.Equal(t, session.StateWorkoutExercises, v.State)
	assert.Equal(t, sessionID, v.SessionID)
	assert.True(t, v.SessionHasSavedSets)

	// confirmed: the session is abandoned, its sets stay
	confirmerMock.EXPECT().Confirm(gomock.Any(), session.PromptAbandonSession).Return(true, nil)
	v, err = f.machine.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateStartWorkout, v.State)
	assert.Empty(t, v.SessionID)
	assert.False(t, v.SessionHasSavedSets)

	sets, err := f.records.SetsBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, sets, 1)

	sessions, err := f.records.ListWorkoutSessions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// an abandoned session cannot be finished or resumed
	_, err = f.machine.LoadWorkoutExercises(ctx, w.ID)
	assert.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestMachine_NoteOnlySaveGuardsLeavingSession(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	confirmerMock := NewMockConfirmer(ctrl)
	f := newFixture(t, confirmerMock)

	w := f.addWorkout(t, "Legs")
	squat := f.addExercise(t, w.ID, "Squat", 3, false)
	v := f.startSession(t, w.ID)
	sessionID := v.SessionID

	_, err := f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Note: "knee felt off"})
	require.NoError(t, err)

	v, err = f.machine.SaveExerciseEntry(ctx)
	require.NoError(t, err)
	assert.True(t, v.SessionHasSavedSets, "a saved note counts as logged work")
	assert.Nil(t, v.Detail.SessionPB)

	v, err = f.machine.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateWorkoutExercises, v.State)

	confirmerMock.EXPECT().Confirm(gomock.Any(), session.PromptAbandonSession).Return(false, nil)
	v, err = f.machine.Back(ctx)
	require.ErrorIs(t, err, session.ErrNotConfirmed)
	assert.Equal(t, session.StateWorkoutExercises, v.State)
	assert.Equal(t, sessionID, v.SessionID)
}

func TestMachine_DiscardGuardIgnoresEmptyOrUnchangedNote(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	confirmerMock := NewMockConfirmer(ctrl)
	f := newFixture(t, confirmerMock)

	w := f.addWorkout(t, "Legs")
	squat := f.addExercise(t, w.ID, "Squat", 3, false)
	_, err := f.records.AddNote(ctx, squat.ID, "elbows in")
	require.NoError(t, err)
	f.startSession(t, w.ID)

	// the pre-filled note alone is nothing to lose
	v, err := f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	assert.Equal(t, "elbows in", v.Detail.Draft.Note)
	v, err = f.machine.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateWorkoutExercises, v.State)

	// neither is a cleared note field
	_, err = f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Note: "  "})
	require.NoError(t, err)
	v, err = f.machine.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateWorkoutExercises, v.State)

	// an edited note is
	_, err = f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Note: "elbows in, slow negatives"})
	require.NoError(t, err)
	confirmerMock.EXPECT().Confirm(gomock.Any(), session.PromptDiscardDraft).Return(false, nil)
	v, err = f.machine.Back(ctx)
	require.ErrorIs(t, err, session.ErrNotConfirmed)
	assert.Equal(t, session.StateExerciseDetail, v.State)
}

func TestMachine_SaveReportsSessionPB(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	w := f.addWorkout(t, "Push")
	bench := f.addExercise(t, w.ID, "Bench", 3, false)

	for _, s := range []gymlog.Set{
		{Slot: 0, Reps: 5, Weight: 100},
		{Slot: 1, Reps: 8, Weight: 90},
	} {
		s.ExerciseID = bench.ID
		s.WorkoutID = w.ID
		s.SessionID = "earlier"
		_, err := f.records.AddSet(ctx, s)
		require.NoError(t, err)
	}

	f.startSession(t, w.ID)
	_, err := f.machine.OpenExerciseDetail(ctx, bench.ID)
	require.NoError(t, err)

	cases := []struct {
		name string
		slot session.DraftSlot
		isPB bool
	}{
		{name: "repeats the best so far", slot: session.DraftSlot{Reps: 5, Weight: 100}, isPB: false},
		{name: "lighter for more reps", slot: session.DraftSlot{Reps: 12, Weight: 80}, isPB: false},
		{name: "same weight more reps", slot: session.DraftSlot{Reps: 6, Weight: 100}, isPB: true},
	}
	for _, tc := range cases {
		_, err = f.machine.UpdateDraft(ctx, session.Draft{Slots: []session.DraftSlot{tc.slot}})
		require.NoError(t, err, tc.name)
		v, err := f.machine.SaveExerciseEntry(ctx)
		require.NoError(t, err, tc.name)
		require.NotNil(t, v.Detail.SessionPB, tc.name)
		assert.Equal(t, tc.isPB, *v.Detail.SessionPB, tc.name)
	}
}

func TestMachine_ConfirmerError(t *testing.T) {
	ctx := context.Background()
	errPrompt := errors.New("prompt closed")
	f := newFixture(t, session.ConfirmFunc(func(context.Context, string) (bool, error) {
		return false, errPrompt
	}))
	w := f.addWorkout(t, "Legs")
	f.addExercise(t, w.ID, "Squat", 3, false)
	f.startSession(t, w.ID)

	_, err := f.machine.FinishSession(ctx)
	assert.ErrorIs(t, err, errPrompt)
}

func TestMachine_HomeLeavesSessionWithPrompt(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	confirmerMock := NewMockConfirmer(ctrl)
	f := newFixture(t, confirmerMock)

	w := f.addWorkout(t, "Legs")
	squat := f.addExercise(t, w.ID, "Squat", 3, false)
	f.startSession(t, w.ID)
	_, err := f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Slots: []session.DraftSlot{{Reps: 5, Weight: 100}}})
	require.NoError(t, err)
	_, err = f.machine.SaveExerciseEntry(ctx)
	require.NoError(t, err)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Slots: []session.DraftSlot{{}, {Reps: 5, Weight: 100}}})
	require.NoError(t, err)

	gomock.InOrder(
		confirmerMock.EXPECT().Confirm(gomock.Any(), session.PromptDiscardDraft).Return(true, nil),
		confirmerMock.EXPECT().Confirm(gomock.Any(), session.PromptAbandonSession).Return(true, nil),
	)
	v, err := f.machine.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateHome, v.State)
	assert.Empty(t, v.SessionID)
	assert.Nil(t, v.Detail)
}

func TestMachine_InvalidNavigation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	w := f.addWorkout(t, "Legs")

	_, err := f.machine.StartWorkoutSession(ctx, w.ID)
	assert.ErrorIs(t, err, session.ErrInvalidTransition)

	_, err = f.machine.OpenExerciseDetail(ctx, "x")
	assert.ErrorIs(t, err, session.ErrNoActiveSession)

	_, err = f.machine.SaveExerciseEntry(ctx)
	assert.ErrorIs(t, err, session.ErrInvalidTransition)

	_, err = f.machine.FinishSession(ctx)
	assert.ErrorIs(t, err, session.ErrInvalidTransition)

	_, err = f.machine.UpdateDraft(ctx, session.Draft{})
	assert.ErrorIs(t, err, session.ErrInvalidTransition)

	assert.Equal(t, session.StateHome, f.machine.Current().State)
}

func TestMachine_DraftValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	w := f.addWorkout(t, "Legs")
	squat := f.addExercise(t, w.ID, "Squat", 2, false)
	f.startSession(t, w.ID)
	_, err := f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)

	_, err = f.machine.UpdateDraft(ctx, session.Draft{Slots: make([]session.DraftSlot, 3)})
	assert.ErrorIs(t, err, session.ErrInvalidDraft)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Slots: []session.DraftSlot{{Reps: -1}}})
	assert.ErrorIs(t, err, session.ErrInvalidDraft)

	v, err := f.machine.UpdateDraft(ctx, session.Draft{Slots: []session.DraftSlot{{Reps: 1, Weight: 1}}})
	require.NoError(t, err)
	assert.Len(t, v.Detail.Draft.Slots, 2, "padded to the slot count")
}

func TestMachine_OpenExerciseOfAnotherWorkout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	legs := f.addWorkout(t, "Legs")
	push := f.addWorkout(t, "Push")
	f.addExercise(t, legs.ID, "Squat", 3, false)
	bench := f.addExercise(t, push.ID, "Bench", 3, false)
	f.startSession(t, legs.ID)

	v, err := f.machine.OpenExerciseDetail(ctx, bench.ID)
	require.ErrorIs(t, err, gymlog.ErrExerciseNotFound)
	assert.NotEmpty(t, v.Error)
}

func TestMachine_SaveSkipsEmptySlotsAndSurvivesFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	w := f.addWorkout(t, "Legs")
	squat := f.addExercise(t, w.ID, "Squat", 4, false)
	v := f.startSession(t, w.ID)
	sessionID := v.SessionID

	_, err := f.machine.OpenExerciseDetail(ctx, squat.ID)
	require.NoError(t, err)
	_, err = f.machine.UpdateDraft(ctx, session.Draft{Slots: []session.DraftSlot{
		{Reps: 5, Weight: 100},
		{}, // skipped
		{Reps: 5, Weight: 100},
		{Reps: 4, Weight: 100},
	}})
	require.NoError(t, err)

	errDisk := errors.New("disk full")
	f.store.setOnInsert(func(table string, row store.Row) error {
		if table == store.TableSets && row["sets"] == 2 {
			return errDisk
		}
		return nil
	})

	v, err = f.machine.SaveExerciseEntry(ctx)
	require.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "slot 2")
	assert.True(t, v.SessionHasSavedSets)
	assert.NotEmpty(t, v.Error)
	assert.Equal(t, 4, v.Detail.Draft.Slots[3].Reps, "draft kept for a retry")

	sets, err := f.records.SetsBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.ElementsMatch(t, []int{0, 3}, []int{sets[0].Slot, sets[1].Slot})

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CounterSetsSaved))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterSetWriteFailures))
}

func TestMachine_StoreReadFailureKeepsTargetState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, session.AlwaysConfirm)
	errDB := errors.New("db unreachable")
	f.store.setOnSelect(func(q store.Query) error {
		if q.Table == store.TableWorkouts {
			return errDB
		}
		return nil
	})

	v, err := f.machine.LoadWorkouts(ctx)
	require.ErrorIs(t, err, errDB)
	assert.Equal(t, session.StateViewWorkouts, v.State)
	assert.Equal(t, errDB.Error(), v.Error)

	f.store.setOnSelect(nil)
	f.addWorkout(t, "Legs")
	v, err = f.machine.LoadWorkouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, v.Error)
	assert.Len(t, v.Workouts, 1)
}
