package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/gymlog/reconcile"
	"github.com/2beens/gymlog/internal/telemetry/metrics"
	"github.com/2beens/gymlog/internal/telemetry/tracing"
)

var (
	ErrNoActiveSession = errors.New("no active workout session")
	ErrSuperseded      = errors.New("superseded by a newer request")
	ErrInvalidDraft    = errors.New("invalid draft")
)

// previousWorkoutsLimit caps the completed sessions listed in previous-workouts.
const previousWorkoutsLimit = 50

type recordsRepo interface {
	ListWorkouts(ctx context.Context) ([]gymlog.Workout, error)
	GetWorkout(ctx context.Context, id string) (*gymlog.Workout, error)
	AddWorkout(ctx context.Context, name string) (*gymlog.Workout, error)
	RenameWorkout(ctx context.Context, id, name string) error
	DeleteWorkout(ctx context.Context, id string) error
	ListExercises(ctx context.Context, workoutID string) ([]gymlog.Exercise, error)
	GetExercise(ctx context.Context, id string) (*gymlog.Exercise, error)
	AddExercise(ctx context.Context, ex gymlog.Exercise) (*gymlog.Exercise, error)
	UpdateExercise(ctx context.Context, ex gymlog.Exercise) error
	DeleteExercise(ctx context.Context, id string) error
	AddSet(ctx context.Context, set gymlog.Set) (*gymlog.Set, error)
	SetsBySession(ctx context.Context, sessionID string) ([]gymlog.Set, error)
	SetsBySessions(ctx context.Context, sessionIDs []string) ([]gymlog.Set, error)
	SetsByWorkout(ctx context.Context, workoutID string) ([]gymlog.Set, error)
	ExerciseHistory(ctx context.Context, exerciseID, excludeSessionID string) ([]gymlog.Set, error)
	AddNote(ctx context.Context, exerciseID, note string) (*gymlog.ExerciseNote, error)
	LatestNote(ctx context.Context, exerciseID string) (*gymlog.ExerciseNote, error)
	ListWorkoutSessions(ctx context.Context, limit int) ([]gymlog.WorkoutSession, error)
	LastCompleted(ctx context.Context, workoutID string) (*time.Time, error)
}

type finisher interface {
	Finish(ctx context.Context, sessionID, workoutID string) (*reconcile.Summary, error)
}

// Machine drives the navigation of a single user through the workout logger.
// The mutex guards the fields below it and is never held across store calls.
type Machine struct {
	records        recordsRepo
	finisher       finisher
	caches         *Caches
	confirmer      Confirmer
	metricsManager *metrics.Manager
	newSessionID   func() string

	mutex               sync.Mutex
	state               State
	workout             *gymlog.Workout
	exercise            *gymlog.Exercise
	sessionID           string
	sessionWorkoutID    string
	sessionHasSavedSets bool
	canFinish           bool
	draft               Draft
	loadedNote          string
	view                View
	requestSeq          uint64
}

func NewMachine(
	records recordsRepo,
	finisher finisher,
	caches *Caches,
	confirmer Confirmer,
	metricsManager *metrics.Manager,
) *Machine {
	if confirmer == nil {
		confirmer = NeverConfirm
	}
	m := &Machine{
		records:        records,
		finisher:       finisher,
		caches:         caches,
		confirmer:      confirmer,
		metricsManager: metricsManager,
		newSessionID:   uuid.NewString,
		state:          StateHome,
	}
	m.registerRefreshHandlers()
	return m
}

// Current returns the view as it is now.
func (m *Machine) Current() View {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.snapshot()
}

// snapshot must be called with the mutex held.
func (m *Machine) snapshot() View {
	v := m.view
	v.State = m.state
	v.SessionID = m.sessionID
	v.SessionHasSavedSets = m.sessionHasSavedSets
	if v.Detail != nil {
		d := *v.Detail
		d.Draft = m.draft.clone()
		v.Detail = &d
	}
	return v
}

// begin fires event and hands out a ticket for the load that follows. pre, when
// given, is checked with the mutex held before anything changes.
func (m *Machine) begin(event Event, pre func() error) (uint64, State, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if pre != nil {
		if err := pre(); err != nil {
			return 0, m.state, err
		}
	}
	next, err := Transition(m.state, event)
	if err != nil {
		return 0, m.state, err
	}

	log.Tracef("session machine: %s --%s--> %s", m.state, event, next)
	m.state = next
	m.view.Error = ""
	m.view.Message = ""
	m.requestSeq++
	return m.requestSeq, next, nil
}

// complete applies the result of a load started with begin, unless a newer load
// has been started in the meantime.
func (m *Machine) complete(ticket uint64, target State, fetchErr error, apply func()) (View, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if ticket != m.requestSeq {
		log.Debugf("session machine: dropping stale %s response", target)
		if m.metricsManager != nil {
			m.metricsManager.CounterStaleResponses.WithLabelValues(string(target)).Inc()
		}
		return m.snapshot(), ErrSuperseded
	}
	if fetchErr != nil {
		log.Errorf("session machine: load %s: %s", target, fetchErr)
		m.view.Error = fetchErr.Error()
		return m.snapshot(), fetchErr
	}

	apply()
	return m.snapshot(), nil
}

func (m *Machine) confirm(ctx context.Context, prompt string) error {
	ok, err := confirmerFrom(ctx, m.confirmer).Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm %q: %w", prompt, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, prompt)
	}
	return nil
}

func (m *Machine) requireSession() error {
	if m.sessionID == "" {
		return ErrNoActiveSession
	}
	return nil
}

// ---------------- navigation ----------------

func (m *Machine) Home(ctx context.Context) (View, error) {
	return m.leave(ctx, EventHome)
}

// Back goes to the previous screen, asking before unsaved input or an active
// session would be left behind.
func (m *Machine) Back(ctx context.Context) (View, error) {
	return m.leave(ctx, EventBack)
}

func (m *Machine) leave(ctx context.Context, event Event) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.leave."+string(event))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	m.mutex.Lock()
	from := m.state
	target, err := Transition(from, event)
	if err != nil {
		m.mutex.Unlock()
		return m.Current(), err
	}
	var prompts []string
	if from == StateExerciseDetail && m.draft.dirty(m.loadedNote) {
		prompts = append(prompts, PromptDiscardDraft)
	}
	if inSession(from) && !inSession(target) && m.sessionHasSavedSets {
		prompts = append(prompts, PromptAbandonSession)
	}
	seq := m.requestSeq
	workoutID := m.sessionWorkoutID
	m.mutex.Unlock()

	for _, prompt := range prompts {
		if err := m.confirm(ctx, prompt); err != nil {
			return m.Current(), err
		}
	}

	m.mutex.Lock()
	if m.state != from || m.requestSeq != seq {
		m.mutex.Unlock()
		return m.Current(), ErrSuperseded
	}
	if from == StateExerciseDetail {
		m.exercise = nil
		m.draft = Draft{}
		m.loadedNote = ""
	}
	if inSession(from) && !inSession(target) {
		if m.sessionHasSavedSets {
			log.Infof("session %s abandoned with saved sets", m.sessionID)
		}
		m.sessionID = ""
		m.sessionWorkoutID = ""
		m.sessionHasSavedSets = false
	}
	m.mutex.Unlock()

	switch target {
	case StateViewWorkouts:
		return m.loadWorkouts(ctx, event)
	case StateStartWorkout:
		return m.loadStartWorkout(ctx, event)
	case StateWorkoutExercises:
		return m.loadWorkoutExercises(ctx, workoutID, event)
	default:
		return m.goHome(event)
	}
}

func (m *Machine) goHome(event Event) (View, error) {
	ticket, target, err := m.begin(event, nil)
	if err != nil {
		return m.Current(), err
	}
	return m.complete(ticket, target, nil, func() {
		m.workout = nil
		m.exercise = nil
		m.view = View{}
	})
}

// ---------------- workouts & exercises ----------------

func (m *Machine) LoadWorkouts(ctx context.Context) (View, error) {
	return m.loadWorkouts(ctx, EventViewWorkouts)
}

func (m *Machine) loadWorkouts(ctx context.Context, event Event) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.loadWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ticket, target, err := m.begin(event, nil)
	if err != nil {
		return m.Current(), err
	}

	workouts, fetchErr := m.caches.Workouts.Get(ctx, workoutsKey, m.records.ListWorkouts, false)
	return m.complete(ticket, target, fetchErr, func() {
		m.workout = nil
		m.view = View{Workouts: workoutItems(workouts, nil)}
	})
}

// LoadExercises lists the exercises of a workout with the best set ever logged for each.
func (m *Machine) LoadExercises(ctx context.Context, workoutID string) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.loadExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ticket, target, err := m.begin(EventSelectWorkout, nil)
	if err != nil {
		return m.Current(), err
	}

	var (
		exercises []gymlog.Exercise
		bests     map[string]gymlog.Set
	)
	workout, fetchErr := m.records.GetWorkout(ctx, workoutID)
	if fetchErr == nil {
		exercises, fetchErr = m.caches.Exercises.Get(ctx, workoutID, m.exercisesFetcher(workoutID), false)
	}
	if fetchErr == nil {
		bests, fetchErr = m.caches.Bests.Get(ctx, workoutID, m.bestsFetcher(workoutID), false)
	}

	return m.complete(ticket, target, fetchErr, func() {
		m.workout = workout
		m.view = View{
			Workout:   workout,
			Exercises: exerciseItems(exercises, nonNil(bests)),
		}
	})
}

func (m *Machine) exercisesFetcher(workoutID string) func(ctx context.Context) ([]gymlog.Exercise, error) {
	return func(ctx context.Context) ([]gymlog.Exercise, error) {
		return m.records.ListExercises(ctx, workoutID)
	}
}

// bestsFetcher reads the whole set history of a workout and keeps the best set of
// each exercise that has one.
func (m *Machine) bestsFetcher(workoutID string) func(ctx context.Context) (map[string]gymlog.Set, error) {
	return func(ctx context.Context) (map[string]gymlog.Set, error) {
		exercises, err := m.records.ListExercises(ctx, workoutID)
		if err != nil {
			return nil, err
		}
		sets, err := m.records.SetsByWorkout(ctx, workoutID)
		if err != nil {
			return nil, err
		}
		return bestSets(exercises, sets), nil
	}
}

func nonNil(bests map[string]gymlog.Set) map[string]gymlog.Set {
	if bests == nil {
		return map[string]gymlog.Set{}
	}
	return bests
}

// LoadPreviousWorkouts lists completed sessions, newest first.
func (m *Machine) LoadPreviousWorkouts(ctx context.Context) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "machine.loadPreviousWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ticket, target, err := m.begin(EventPreviousWorkouts, nil)
	if err != nil {
		return m.Current(), err
	}

	var (
		workouts []gymlog.Workout
		sets     []gymlog.Set
	)
	sessions, fetchErr := m.records.ListWorkoutSessions(ctx, previousWorkoutsLimit)
	if fetchErr == nil {
		workouts, fetchErr = m.caches.Workouts.Get(ctx, workoutsKey, m.records.ListWorkouts, false)
	}
	if fetchErr == nil && len(sessions) > 0 {
		ids := make([]string, 0, len(sessions))
		for _, s := range sessions {
			ids = append(ids, s.SessionID)
		}
		sets, fetchErr = m.records.SetsBySessions(ctx, ids)
	}

	return m.complete(ticket, target, fetchErr, func() {
		m.workout = nil
		m.view = View{Previous: previousWorkouts(sessions, workouts, sets)}
	})
}
