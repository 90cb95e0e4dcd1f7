package session

import (
	"github.com/2beens/gymlog/internal/gymlog"
)

// Background cache refreshes only reach the view when the user still looks at
// the data that was refreshed.

func (m *Machine) registerRefreshHandlers() {
	m.caches.Workouts.OnRefresh(m.onWorkoutsRefreshed)
	m.caches.Exercises.OnRefresh(m.onExercisesRefreshed)
	m.caches.Bests.OnRefresh(m.onBestsRefreshed)
}

func (m *Machine) onWorkoutsRefreshed(_ string, workouts []gymlog.Workout) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.state != StateViewWorkouts && m.state != StateStartWorkout {
		return
	}
	m.view.Workouts = workoutItems(workouts, lastCompletedOf(m.view.Workouts))
}

func (m *Machine) onExercisesRefreshed(workoutID string, exercises []gymlog.Exercise) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.workout == nil || m.workout.ID != workoutID {
		return
	}
	switch m.state {
	case StateViewExercises:
		pbs := make(map[string]ExerciseItem, len(m.view.Exercises))
		for _, item := range m.view.Exercises {
			pbs[item.ID] = item
		}
		items := exerciseItems(exercises, nil)
		for i := range items {
			items[i].PB = pbs[items[i].ID].PB
			items[i].PBText = pbs[items[i].ID].PBText
			if items[i].PBText == "" {
				items[i].PBText = "PB: —"
			}
		}
		m.view.Exercises = items
	case StateWorkoutExercises:
		m.canFinish = len(exercises) > 0
		m.view.Exercises = exerciseItems(exercises, nil)
		m.view.CanFinish = m.canFinish
	}
}

func (m *Machine) onBestsRefreshed(workoutID string, bests map[string]gymlog.Set) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.state != StateViewExercises || m.workout == nil || m.workout.ID != workoutID {
		return
	}
	m.view.Exercises = exerciseItems(exercisesOf(m.view.Exercises), nonNil(bests))
}
