package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"

	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/gymlog/pb"
	"github.com/2beens/gymlog/internal/telemetry/tracing"
)

// LoadStartWorkout lists the workouts a session can be started for, each with
// the time it was last completed.
func (m *Machine) LoadStartWorkout(ctx context.Context) (View, error) {
	return m.loadStartWorkout(ctx, EventStartWorkout)
}

func (m *Machine) loadStartWorkout(ctx context.Context, event Event) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.loadStartWorkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ticket, target, err := m.begin(event, nil)
	if err != nil {
		return m.Current(), err
	}

	lastCompleted := make(map[string]*time.Time)
	workouts, fetchErr := m.caches.Workouts.Get(ctx, workoutsKey, m.records.ListWorkouts, false)
	for _, w := range workouts {
		if fetchErr != nil {
			break
		}
		workoutID := w.ID
		lastCompleted[workoutID], fetchErr = m.caches.LastCompleted.Get(ctx, workoutID, func(ctx context.Context) (*time.Time, error) {
			return m.records.LastCompleted(ctx, workoutID)
		}, false)
	}

	return m.complete(ticket, target, fetchErr, func() {
		m.workout = nil
		m.canFinish = false
		m.view = View{Workouts: workoutItems(workouts, lastCompleted)}
	})
}

// StartWorkoutSession begins a new session for the workout and shows its exercises.
func (m *Machine) StartWorkoutSession(ctx context.Context, workoutID string) (View, error) {
	m.mutex.Lock()
	if m.state != StateStartWorkout {
		state := m.state
		m.mutex.Unlock()
		return m.Current(), fmt.Errorf("%w: start a session from %s", ErrInvalidTransition, state)
	}
	m.sessionID = m.newSessionID()
	m.sessionWorkoutID = workoutID
	m.sessionHasSavedSets = false
	m.draft = Draft{}
	log.Debugf("session %s started for workout %s", m.sessionID, workoutID)
	m.mutex.Unlock()

	return m.loadWorkoutExercises(ctx, workoutID, EventBeginSession)
}

// LoadWorkoutExercises shows the exercises of the workout the active session belongs to.
func (m *Machine) LoadWorkoutExercises(ctx context.Context, workoutID string) (View, error) {
	return m.loadWorkoutExercises(ctx, workoutID, EventBeginSession)
}

func (m *Machine) loadWorkoutExercises(ctx context.Context, workoutID string, event Event) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.loadWorkoutExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workoutID))

	ticket, target, err := m.begin(event, func() error {
		if err := m.requireSession(); err != nil {
			return err
		}
		if m.sessionWorkoutID != workoutID {
			return fmt.Errorf("%w: session belongs to another workout", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return m.Current(), err
	}

	var exercises []gymlog.Exercise
	workout, fetchErr := m.records.GetWorkout(ctx, workoutID)
	if fetchErr == nil {
		exercises, fetchErr = m.caches.Exercises.Get(ctx, workoutID, m.exercisesFetcher(workoutID), false)
	}

	return m.complete(ticket, target, fetchErr, func() {
		m.workout = workout
		m.exercise = nil
		m.canFinish = len(exercises) > 0
		m.view = View{
			Workout:   workout,
			Exercises: exerciseItems(exercises, nil),
			CanFinish: m.canFinish,
		}
	})
}

// OpenExerciseDetail shows the input slots of an exercise of the session's workout,
// each with the most recent set logged at that slot in earlier sessions.
func (m *Machine) OpenExerciseDetail(ctx context.Context, exerciseID string) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.openExerciseDetail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	var sessionID, workoutID string
	ticket, target, err := m.begin(EventOpenExercise, func() error {
		sessionID = m.sessionID
		workoutID = m.sessionWorkoutID
		return m.requireSession()
	})
	if err != nil {
		return m.Current(), err
	}

	var (
		note    *gymlog.ExerciseNote
		history []gymlog.Set
	)
	ex, fetchErr := m.records.GetExercise(ctx, exerciseID)
	if fetchErr == nil && ex.WorkoutID != workoutID {
		fetchErr = fmt.Errorf("%w: %s is not part of the workout", gymlog.ErrExerciseNotFound, exerciseID)
	}
	if fetchErr == nil {
		note, fetchErr = m.records.LatestNote(ctx, exerciseID)
	}
	if fetchErr == nil {
		history, fetchErr = m.records.ExerciseHistory(ctx, exerciseID, sessionID)
	}

	return m.complete(ticket, target, fetchErr, func() {
		noteText := ""
		if note != nil {
			noteText = note.Note
		}
		m.exercise = ex
		m.loadedNote = noteText
		m.draft = newDraft(*ex, noteText)
		m.view = View{
			Workout: m.workout,
			Detail: &ExerciseDetail{
				Exercise: *ex,
				Note:     noteText,
				Slots:    slotViews(*ex, history),
			},
		}
	})
}

// UpdateDraft records the unsaved input of the exercise detail view.
func (m *Machine) UpdateDraft(_ context.Context, draft Draft) (View, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.state != StateExerciseDetail || m.exercise == nil {
		return m.snapshot(), fmt.Errorf("%w: no exercise open", ErrInvalidTransition)
	}
	slots := m.exercise.SlotCount()
	if len(draft.Slots) > slots {
		return m.snapshot(), fmt.Errorf("%w: %d slots, exercise has %d", ErrInvalidDraft, len(draft.Slots), slots)
	}
	for i, s := range draft.Slots {
		if s.Reps < 0 || s.Weight < 0 {
			return m.snapshot(), fmt.Errorf("%w: negative input in slot %d", ErrInvalidDraft, i)
		}
	}

	d := draft.clone()
	for len(d.Slots) < slots {
		d.Slots = append(d.Slots, DraftSlot{})
	}
	m.draft = d
	return m.snapshot(), nil
}

// SaveExerciseEntry writes the non-empty slots of the draft as sets of the active
// session, plus the note when there is one. A failing insert does not stop the
// others; all failures are returned together.
func (m *Machine) SaveExerciseEntry(ctx context.Context) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.saveExerciseEntry")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	m.mutex.Lock()
	if m.state != StateExerciseDetail {
		state := m.state
		m.mutex.Unlock()
		return m.Current(), fmt.Errorf("%w: save from %s", ErrInvalidTransition, state)
	}
	if m.sessionID == "" || m.workout == nil || m.exercise == nil {
		m.mutex.Unlock()
		return m.Current(), ErrNoActiveSession
	}
	sessionID := m.sessionID
	workoutID := m.workout.ID
	ex := *m.exercise
	draft := m.draft.clone()
	m.mutex.Unlock()

	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("exercise.id", ex.ID),
	)

	var saveErr error
	saved := 0
	for slot, input := range draft.Slots {
		if input.IsEmpty() {
			continue
		}
		if _, err := m.records.AddSet(ctx, gymlog.Set{
			ExerciseID: ex.ID,
			WorkoutID:  workoutID,
			SessionID:  sessionID,
			Slot:       slot,
			Reps:       input.Reps,
			Weight:     input.Weight,
		}); err != nil {
			saveErr = multierr.Append(saveErr, fmt.Errorf("save slot %d: %w", slot, err))
			m.count(func() { m.metricsManager.CounterSetWriteFailures.Inc() })
			continue
		}
		saved++
		m.count(func() { m.metricsManager.CounterSetsSaved.Inc() })
	}

	noteSaved := false
	if strings.TrimSpace(draft.Note) != "" {
		if _, err := m.records.AddNote(ctx, ex.ID, draft.Note); err != nil {
			saveErr = multierr.Append(saveErr, fmt.Errorf("save note: %w", err))
			m.count(func() { m.metricsManager.CounterSetWriteFailures.Inc() })
		} else {
			noteSaved = true
			m.count(func() { m.metricsManager.CounterNotesSaved.Inc() })
		}
	}

	if err := m.caches.invalidateWorkoutData(ctx, workoutID); err != nil {
		log.Errorf("save exercise entry: invalidate caches of workout %s: %s", workoutID, err)
	}

	var sessionPB *bool
	if saved > 0 {
		if isPB, err := m.sessionPB(ctx, ex, sessionID); err != nil {
			log.Warnf("save exercise entry: compute PB of %s: %s", ex.ID, err)
		} else {
			sessionPB = &isPB
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if (saved > 0 || noteSaved) && m.sessionID == sessionID {
		m.sessionHasSavedSets = true
	}
	stillOpen := m.state == StateExerciseDetail && m.exercise != nil && m.exercise.ID == ex.ID
	if !stillOpen {
		return m.snapshot(), saveErr
	}

	if noteSaved {
		m.loadedNote = draft.Note
	}
	if saveErr != nil {
		m.view.Error = saveErr.Error()
		return m.snapshot(), saveErr
	}

	m.draft = newDraft(ex, m.loadedNote)
	if m.view.Detail != nil {
		d := *m.view.Detail
		d.Note = m.loadedNote
		d.SessionPB = sessionPB
		m.view.Detail = &d
	}
	m.view.Error = ""
	m.view.Message = "Saved!"
	return m.snapshot(), nil
}

// sessionPB tells whether the sets logged for ex in the session so far beat its history.
func (m *Machine) sessionPB(ctx context.Context, ex gymlog.Exercise, sessionID string) (bool, error) {
	sessionSets, err := m.records.SetsBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	history, err := m.records.ExerciseHistory(ctx, ex.ID, sessionID)
	if err != nil {
		return false, err
	}
	return pb.IsSessionPB(pb.GroupByExercise(sessionSets)[ex.ID], history, ex.HasWarmup), nil
}

// FinishSession completes the active session and reports the personal bests set in it.
// On failure the session stays active.
func (m *Machine) FinishSession(ctx context.Context) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.finishSession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	m.mutex.Lock()
	if _, err := Transition(m.state, EventFinish); err != nil {
		m.mutex.Unlock()
		return m.Current(), err
	}
	if err := m.requireSession(); err != nil {
		m.mutex.Unlock()
		return m.Current(), err
	}
	if !m.canFinish {
		m.mutex.Unlock()
		return m.Current(), fmt.Errorf("%w: the workout has no exercises", ErrInvalidTransition)
	}
	sessionID := m.sessionID
	workoutID := m.sessionWorkoutID
	m.mutex.Unlock()

	if err := m.confirm(ctx, PromptFinish); err != nil {
		return m.Current(), err
	}

	summary, err := m.finisher.Finish(ctx, sessionID, workoutID)
	if err != nil {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		log.Errorf("finish session %s: %s", sessionID, err)
		m.view.Error = err.Error()
		return m.snapshot(), err
	}

	if err := m.caches.invalidateWorkoutData(ctx, workoutID); err != nil {
		log.Errorf("finish session: invalidate caches of workout %s: %s", workoutID, err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.sessionID == sessionID {
		m.sessionID = ""
		m.sessionWorkoutID = ""
		m.sessionHasSavedSets = false
	}
	m.state = StateHome
	m.workout = nil
	m.exercise = nil
	m.canFinish = false
	m.draft = Draft{}
	m.loadedNote = ""
	m.requestSeq++
	m.view = View{
		Summary: summary,
		Message: summary.Message(),
	}
	return m.snapshot(), nil
}

func (m *Machine) count(inc func()) {
	if m.metricsManager != nil {
		inc()
	}
}
