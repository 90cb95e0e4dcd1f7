package session

import (
	"errors"
	"fmt"
)

type State string

const (
	StateHome             State = "home"
	StateViewWorkouts     State = "view-workouts"
	StateViewExercises    State = "view-exercises"
	StatePreviousWorkouts State = "previous-workouts"
	StateStartWorkout     State = "start-workout"
	StateWorkoutExercises State = "workout-exercises"
	StateExerciseDetail   State = "exercise-detail"
)

type Event string

const (
	EventHome             Event = "home"
	EventViewWorkouts     Event = "view-workouts"
	EventSelectWorkout    Event = "select-workout"
	EventStartWorkout     Event = "start-workout"
	EventBeginSession     Event = "begin-session"
	EventOpenExercise     Event = "open-exercise"
	EventPreviousWorkouts Event = "previous-workouts"
	EventFinish           Event = "finish"
	EventBack             Event = "back"
)

var ErrInvalidTransition = errors.New("invalid transition")

// transitions lists, per event, the states it may fire from. EventHome and
// EventBack are valid everywhere and handled separately.
var transitions = map[Event]struct {
	from []State
	to   State
}{
	EventViewWorkouts: {
		from: []State{StateHome, StateViewWorkouts, StateViewExercises},
		to:   StateViewWorkouts,
	},
	EventSelectWorkout: {
		from: []State{StateViewWorkouts, StateViewExercises},
		to:   StateViewExercises,
	},
	EventStartWorkout: {
		from: []State{StateHome, StateStartWorkout},
		to:   StateStartWorkout,
	},
	EventBeginSession: {
		from: []State{StateStartWorkout, StateWorkoutExercises},
		to:   StateWorkoutExercises,
	},
	EventOpenExercise: {
		from: []State{StateWorkoutExercises, StateExerciseDetail},
		to:   StateExerciseDetail,
	},
	EventPreviousWorkouts: {
		from: []State{StateHome, StatePreviousWorkouts},
		to:   StatePreviousWorkouts,
	},
	EventFinish: {
		from: []State{StateWorkoutExercises},
		to:   StateHome,
	},
}

var backTable = map[State]State{
	StateExerciseDetail:   StateWorkoutExercises,
	StateWorkoutExercises: StateStartWorkout,
	StateStartWorkout:     StateHome,
	StateViewExercises:    StateViewWorkouts,
	StateViewWorkouts:     StateHome,
	StatePreviousWorkouts: StateHome,
	StateHome:             StateHome,
}

// Transition is the pure state transition function.
func Transition(state State, event Event) (State, error) {
	switch event {
	case EventHome:
		return StateHome, nil
	case EventBack:
		if to, ok := backTable[state]; ok {
			return to, nil
		}
		return state, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, state)
	}

	t, ok := transitions[event]
	if !ok {
		return state, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event)
	}
	for _, from := range t.from {
		if from == state {
			return t.to, nil
		}
	}
	return state, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, state)
}

// inSession reports whether s belongs to a running workout session.
func inSession(s State) bool {
	return s == StateWorkoutExercises || s == StateExerciseDetail
}
