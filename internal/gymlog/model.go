package gymlog

import (
	"fmt"
	"time"
)

const DefaultNumSets = 4

type Workout struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Exercise struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WorkoutID string    `json:"workoutId"`
	NumSets   int       `json:"numSets"`
	HasWarmup bool      `json:"hasWarmup"`
	CreatedAt time.Time `json:"createdAt"`
}

// SlotCount is the number of input slots shown for the exercise: the working
// sets plus a leading warm-up slot when enabled.
func (e Exercise) SlotCount() int {
	n := e.NumSets
	if n <= 0 {
		n = DefaultNumSets
	}
	if e.HasWarmup {
		n++
	}
	return n
}

// IsWarmupSlot reports whether slot holds the warm-up set.
func (e Exercise) IsWarmupSlot(slot int) bool {
	return e.HasWarmup && slot == 0
}

// Set is one logged set. Slot is the zero-based position within the exercise
// (stored in the "sets" column). Sets are never updated once written.
type Set struct {
	ID         string    `json:"id"`
	ExerciseID string    `json:"exerciseId"`
	WorkoutID  string    `json:"workoutId"`
	SessionID  string    `json:"sessionId"`
	Slot       int       `json:"slot"`
	Reps       int       `json:"reps"`
	Weight     float64   `json:"weight"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s Set) String() string {
	return fmt.Sprintf("%d × %gkg", s.Reps, s.Weight)
}

type ExerciseNote struct {
	ID         string    `json:"id"`
	ExerciseID string    `json:"exerciseId"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"createdAt"`
}

// WorkoutSession marks a session as completed. A session with sets but
// without this record was abandoned.
type WorkoutSession struct {
	SessionID   string    `json:"sessionId"`
	WorkoutID   string    `json:"workoutId"`
	CompletedAt time.Time `json:"completedAt"`
}
