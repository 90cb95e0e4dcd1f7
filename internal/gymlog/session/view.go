package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/gymlog/pb"
	"github.com/2beens/gymlog/internal/gymlog/reconcile"
)

// View is what the user currently sees. Views handed out by the Machine are
// snapshots and never change afterwards.
type View struct {
	State               State              `json:"state"`
	Workout             *gymlog.Workout    `json:"workout,omitempty"`
	SessionID           string             `json:"sessionId,omitempty"`
	SessionHasSavedSets bool               `json:"sessionHasSavedSets"`
	Workouts            []WorkoutItem      `json:"workouts,omitempty"`
	Exercises           []ExerciseItem     `json:"exercises,omitempty"`
	CanFinish           bool               `json:"canFinish"`
	Detail              *ExerciseDetail    `json:"detail,omitempty"`
	Previous            []PreviousWorkout  `json:"previous,omitempty"`
	Summary             *reconcile.Summary `json:"summary,omitempty"`
	Message             string             `json:"message,omitempty"`
	Error               string             `json:"error,omitempty"`
}

type WorkoutItem struct {
	gymlog.Workout
	LastCompleted *time.Time `json:"lastCompleted,omitempty"`
}

type ExerciseItem struct {
	gymlog.Exercise
	PB     *gymlog.Set `json:"pb,omitempty"`
	PBText string      `json:"pbText,omitempty"`
}

type SlotView struct {
	Slot         int         `json:"slot"`
	Label        string      `json:"label"`
	Previous     *gymlog.Set `json:"previous,omitempty"`
	PreviousText string      `json:"previousText"`
}

type ExerciseDetail struct {
	Exercise gymlog.Exercise `json:"exercise"`
	Note     string          `json:"note"`
	Slots    []SlotView      `json:"slots"`
	Draft    Draft           `json:"draft"`
	// SessionPB is set after a save: whether this session beats the exercise history so far.
	SessionPB *bool `json:"sessionPb,omitempty"`
}

type PreviousWorkout struct {
	SessionID   string    `json:"sessionId"`
	WorkoutID   string    `json:"workoutId"`
	WorkoutName string    `json:"workoutName"`
	CompletedAt time.Time `json:"completedAt"`
	SetCount    int       `json:"setCount"`
}

type DraftSlot struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
}

func (s DraftSlot) IsEmpty() bool {
	return s.Reps == 0 && s.Weight == 0
}

// Draft is the unsaved input of the exercise detail view.
type Draft struct {
	Slots []DraftSlot `json:"slots"`
	Note  string      `json:"note"`
}

func newDraft(ex gymlog.Exercise, note string) Draft {
	return Draft{
		Slots: make([]DraftSlot, ex.SlotCount()),
		Note:  note,
	}
}

func (d Draft) clone() Draft {
	c := Draft{Note: d.Note}
	if d.Slots != nil {
		c.Slots = make([]DraftSlot, len(d.Slots))
		copy(c.Slots, d.Slots)
	}
	return c
}

// dirty reports whether the draft holds input that would be lost. An empty note
// never counts, and neither does the note the view was opened with.
func (d Draft) dirty(loadedNote string) bool {
	for _, s := range d.Slots {
		if !s.IsEmpty() {
			return true
		}
	}
	note := strings.TrimSpace(d.Note)
	return note != "" && note != strings.TrimSpace(loadedNote)
}

func workoutItems(workouts []gymlog.Workout, lastCompleted map[string]*time.Time) []WorkoutItem {
	items := make([]WorkoutItem, 0, len(workouts))
	for _, w := range workouts {
		items = append(items, WorkoutItem{
			Workout:       w,
			LastCompleted: lastCompleted[w.ID],
		})
	}
	return items
}

func lastCompletedOf(items []WorkoutItem) map[string]*time.Time {
	last := make(map[string]*time.Time, len(items))
	for _, item := range items {
		last[item.ID] = item.LastCompleted
	}
	return last
}

// bestSets maps each exercise to the best set logged for it. Exercises without an
// eligible set are left out.
func bestSets(exercises []gymlog.Exercise, sets []gymlog.Set) map[string]gymlog.Set {
	groups := pb.GroupByExercise(sets)
	bests := make(map[string]gymlog.Set, len(exercises))
	for _, ex := range exercises {
		if best, ok := pb.BestSet(groups[ex.ID], ex.HasWarmup); ok {
			bests[ex.ID] = best
		}
	}
	return bests
}

// exerciseItems builds the exercise list. With bests == nil no PBs are shown.
func exerciseItems(exercises []gymlog.Exercise, bests map[string]gymlog.Set) []ExerciseItem {
	items := make([]ExerciseItem, 0, len(exercises))
	for _, ex := range exercises {
		item := ExerciseItem{Exercise: ex}
		if bests != nil {
			item.PBText = "PB: —"
			if best, ok := bests[ex.ID]; ok {
				item.PB = &best
				item.PBText = fmt.Sprintf("PB: %gkg × %d", best.Weight, best.Reps)
			}
		}
		items = append(items, item)
	}
	return items
}

func exercisesOf(items []ExerciseItem) []gymlog.Exercise {
	exercises := make([]gymlog.Exercise, 0, len(items))
	for _, item := range items {
		exercises = append(exercises, item.Exercise)
	}
	return exercises
}

func slotLabel(ex gymlog.Exercise, slot int) string {
	if ex.HasWarmup {
		if slot == 0 {
			return "Warm-up"
		}
		return fmt.Sprintf("Set %d", slot)
	}
	return fmt.Sprintf("Set %d", slot+1)
}

func slotViews(ex gymlog.Exercise, history []gymlog.Set) []SlotView {
	placeholders := pb.SlotPlaceholders(history, ex.SlotCount())
	slots := make([]SlotView, 0, len(placeholders))
	for i, prev := range placeholders {
		sv := SlotView{
			Slot:         i,
			Label:        slotLabel(ex, i),
			Previous:     prev,
			PreviousText: "-",
		}
		if prev != nil {
			sv.PreviousText = prev.String()
		}
		slots = append(slots, sv)
	}
	return slots
}

func previousWorkouts(sessions []gymlog.WorkoutSession, workouts []gymlog.Workout, sets []gymlog.Set) []PreviousWorkout {
	names := make(map[string]string, len(workouts))
	for _, w := range workouts {
		names[w.ID] = w.Name
	}
	setCounts := make(map[string]int)
	for _, s := range sets {
		setCounts[s.SessionID]++
	}

	previous := make([]PreviousWorkout, 0, len(sessions))
	for _, ws := range sessions {
		name, ok := names[ws.WorkoutID]
		if !ok {
			name = "(deleted workout)"
		}
		previous = append(previous, PreviousWorkout{
			SessionID:   ws.SessionID,
			WorkoutID:   ws.WorkoutID,
			WorkoutName: name,
			CompletedAt: ws.CompletedAt,
			SetCount:    setCounts[ws.SessionID],
		})
	}
	return previous
}
