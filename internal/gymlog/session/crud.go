package session

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/2beens/gymlog/internal/gymlog"
)

type ExerciseInput struct {
	Name      string `json:"name"`
	NumSets   int    `json:"numSets"`
	HasWarmup bool   `json:"hasWarmup"`
}

func (m *Machine) CreateWorkout(ctx context.Context, name string) (View, error) {
	if _, err := m.records.AddWorkout(ctx, name); err != nil {
		return m.Current(), err
	}
	m.invalidate(m.caches.Workouts.Invalidate(ctx, workoutsKey))
	return m.reloadWorkoutList(ctx)
}

func (m *Machine) RenameWorkout(ctx context.Context, workoutID, name string) (View, error) {
	if err := m.records.RenameWorkout(ctx, workoutID, name); err != nil {
		return m.Current(), err
	}
	m.invalidate(m.caches.Workouts.Invalidate(ctx, workoutsKey))

	if m.viewing(StateViewExercises, workoutID) {
		return m.LoadExercises(ctx, workoutID)
	}
	return m.reloadWorkoutList(ctx)
}

// DeleteWorkout removes a workout together with its exercises and their sets.
func (m *Machine) DeleteWorkout(ctx context.Context, workoutID string) (View, error) {
	if err := m.confirm(ctx, PromptDeleteWorkout); err != nil {
		return m.Current(), err
	}
	if err := m.records.DeleteWorkout(ctx, workoutID); err != nil {
		return m.Current(), err
	}
	m.invalidate(multierr.Combine(
		m.caches.Workouts.Invalidate(ctx, workoutsKey),
		m.caches.Exercises.Invalidate(ctx, workoutID),
		m.caches.Bests.Invalidate(ctx, workoutID),
		m.caches.LastCompleted.Invalidate(ctx, workoutID),
	))

	if m.viewing(StateViewExercises, workoutID) {
		return m.LoadWorkouts(ctx)
	}
	return m.reloadWorkoutList(ctx)
}

func (m *Machine) CreateExercise(ctx context.Context, workoutID string, in ExerciseInput) (View, error) {
	if _, err := m.records.AddExercise(ctx, gymlog.Exercise{
		Name:      in.Name,
		WorkoutID: workoutID,
		NumSets:   in.NumSets,
		HasWarmup: in.HasWarmup,
	}); err != nil {
		return m.Current(), err
	}
	m.invalidate(m.caches.Exercises.Invalidate(ctx, workoutID))
	return m.reloadExerciseList(ctx, workoutID)
}

func (m *Machine) UpdateExercise(ctx context.Context, exerciseID string, in ExerciseInput) (View, error) {
	ex, err := m.records.GetExercise(ctx, exerciseID)
	if err != nil {
		return m.Current(), err
	}
	ex.Name = in.Name
	ex.NumSets = in.NumSets
	ex.HasWarmup = in.HasWarmup
	if err := m.records.UpdateExercise(ctx, *ex); err != nil {
		return m.Current(), err
	}
	// the warm-up flag decides which sets count towards the best
	m.invalidate(multierr.Combine(
		m.caches.Exercises.Invalidate(ctx, ex.WorkoutID),
		m.caches.Bests.Invalidate(ctx, ex.WorkoutID),
	))
	return m.reloadExerciseList(ctx, ex.WorkoutID)
}

// DeleteExercise removes an exercise together with its sets and notes.
func (m *Machine) DeleteExercise(ctx context.Context, exerciseID string) (View, error) {
	ex, err := m.records.GetExercise(ctx, exerciseID)
	if err != nil {
		return m.Current(), err
	}
	if err := m.confirm(ctx, PromptDeleteExercise); err != nil {
		return m.Current(), err
	}
	if err := m.records.DeleteExercise(ctx, exerciseID); err != nil {
		return m.Current(), err
	}
	m.invalidate(multierr.Combine(
		m.caches.Exercises.Invalidate(ctx, ex.WorkoutID),
		m.caches.Bests.Invalidate(ctx, ex.WorkoutID),
	))
	return m.reloadExerciseList(ctx, ex.WorkoutID)
}

func (m *Machine) invalidate(err error) {
	if err != nil {
		log.Errorf("session machine: invalidate caches: %s", err)
	}
}

// viewing reports whether the machine shows state for the given workout.
func (m *Machine) viewing(state State, workoutID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state == state && m.workout != nil && m.workout.ID == workoutID
}

func (m *Machine) reloadWorkoutList(ctx context.Context) (View, error) {
	m.mutex.Lock()
	state := m.state
	m.mutex.Unlock()

	if state == StateViewWorkouts {
		return m.LoadWorkouts(ctx)
	}
	return m.Current(), nil
}

func (m *Machine) reloadExerciseList(ctx context.Context, workoutID string) (View, error) {
	if m.viewing(StateViewExercises, workoutID) {
		return m.LoadExercises(ctx, workoutID)
	}
	return m.Current(), nil
}
