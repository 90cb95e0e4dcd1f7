package gymlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/gymlog/internal/store"
	"github.com/2beens/gymlog/internal/telemetry/tracing"
)

var (
	ErrEmptyName        = errors.New("name must not be empty")
	ErrWorkoutNotFound  = errors.New("workout not found")
	ErrExerciseNotFound = errors.New("exercise not found")
)

// Records is the typed repository over the record store. It owns id and
// timestamp generation.
type Records struct {
	store store.Store
	now   func() time.Time
}

func NewRecords(s store.Store) *Records {
	return &Records{
		store: s,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// ---------------- workouts ----------------

func (r *Records) ListWorkouts(ctx context.Context) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.store.Select(ctx, store.Query{
		Table:   store.TableWorkouts,
		OrderBy: []store.Order{store.Asc("created_at")},
	})
	if err != nil {
		return nil, err
	}

	workouts := make([]Workout, 0, len(rows))
	for _, row := range rows {
		workouts = append(workouts, workoutFromRow(row))
	}
	return workouts, nil
}

func (r *Records) GetWorkout(ctx context.Context, id string) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	rows, err := r.store.Select(ctx, store.Query{
		Table: store.TableWorkouts,
		Where: []store.Cond{store.Eq("id", id)},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrWorkoutNotFound
	}

	w := workoutFromRow(rows[0])
	return &w, nil
}

func (r *Records) AddWorkout(ctx context.Context, name string) (_ *Workout, err error) {
	name, err = validName(name)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "records.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	w := Workout{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: r.now(),
	}
	if err := r.store.Insert(ctx, store.TableWorkouts, store.Row{
		"id":         w.ID,
		"name":       w.Name,
		"created_at": w.CreatedAt,
	}); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("workout.id", w.ID))
	return &w, nil
}

func (r *Records) RenameWorkout(ctx context.Context, id, name string) (err error) {
	name, err = validName(name)
	if err != nil {
		return err
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "records.workouts.rename")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	affected, err := r.store.Update(ctx, store.TableWorkouts, []store.Cond{store.Eq("id", id)}, store.Row{"name": name})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

// DeleteWorkout removes the workout. Its exercises and sets go with it through
// the store's cascade.
func (r *Records) DeleteWorkout(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	affected, err := r.store.Delete(ctx, store.TableWorkouts, []store.Cond{store.Eq("id", id)})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

// ---------------- exercises ----------------

func (r *Records) ListExercises(ctx context.Context, workoutID string) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.exercises.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workoutID))

	return r.selectExercises(ctx, store.Eq("workout_id", workoutID))
}

func (r *Records) ExercisesByIDs(ctx context.Context, ids []string) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.exercises.byIds")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(ids)))

	return r.selectExercises(ctx, store.In("id", toAny(ids)...))
}

func (r *Records) GetExercise(ctx context.Context, id string) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.exercises.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", id))

	exercises, err := r.selectExercises(ctx, store.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return nil, ErrExerciseNotFound
	}
	return &exercises[0], nil
}

func (r *Records) selectExercises(ctx context.Context, cond store.Cond) ([]Exercise, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   store.TableExercises,
		Where:   []store.Cond{cond},
		OrderBy: []store.Order{store.Asc("created_at")},
	})
	if err != nil {
		return nil, err
	}

	exercises := make([]Exercise, 0, len(rows))
	for _, row := range rows {
		exercises = append(exercises, exerciseFromRow(row))
	}
	return exercises, nil
}

func (r *Records) AddExercise(ctx context.Context, ex Exercise) (_ *Exercise, err error) {
	ex.Name, err = validName(ex.Name)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "records.exercises.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ex.ID = uuid.NewString()
	ex.CreatedAt = r.now()
	if ex.NumSets <= 0 {
		ex.NumSets = DefaultNumSets
	}

	if err := r.store.Insert(ctx, store.TableExercises, store.Row{
		"id":         ex.ID,
		"name":       ex.Name,
		"workout_id": ex.WorkoutID,
		"num_sets":   ex.NumSets,
		"has_warmup": ex.HasWarmup,
		"created_at": ex.CreatedAt,
	}); err != nil {
		if errors.Is(err, store.ErrReference) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("exercise.id", ex.ID))
	return &ex, nil
}

// UpdateExercise updates name, target set count and the warm-up flag.
func (r *Records) UpdateExercise(ctx context.Context, ex Exercise) (err error) {
	ex.Name, err = validName(ex.Name)
	if err != nil {
		return err
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "records.exercises.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", ex.ID))

	if ex.NumSets <= 0 {
		ex.NumSets = DefaultNumSets
	}

	affected, err := r.store.Update(ctx, store.TableExercises, []store.Cond{store.Eq("id", ex.ID)}, store.Row{
		"name":       ex.Name,
		"num_sets":   ex.NumSets,
		"has_warmup": ex.HasWarmup,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExerciseNotFound
	}
	return nil
}

func (r *Records) DeleteExercise(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.exercises.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", id))

	affected, err := r.store.Delete(ctx, store.TableExercises, []store.Cond{store.Eq("id", id)})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExerciseNotFound
	}
	return nil
}

// ---------------- sets ----------------

func (r *Records) AddSet(ctx context.Context, set Set) (_ *Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sets.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("exercise.id", set.ExerciseID),
		attribute.String("session.id", set.SessionID),
		attribute.Int("slot", set.Slot),
	)

	if set.Reps < 0 || set.Weight < 0 {
		return nil, fmt.Errorf("negative reps or weight: %d / %g", set.Reps, set.Weight)
	}

	set.ID = uuid.NewString()
	set.CreatedAt = r.now()
	if err := r.store.Insert(ctx, store.TableSets, store.Row{
		"id":          set.ID,
		"exercise_id": set.ExerciseID,
		"workout_id":  set.WorkoutID,
		"session_id":  set.SessionID,
		"sets":        set.Slot,
		"reps":        set.Reps,
		"weight":      set.Weight,
		"created_at":  set.CreatedAt,
	}); err != nil {
		return nil, err
	}

	return &set, nil
}

func (r *Records) SetsBySession(ctx context.Context, sessionID string) (_ []Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sets.bySession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID))

	return r.selectSets(ctx, store.Eq("session_id", sessionID))
}

func (r *Records) SetsBySessions(ctx context.Context, sessionIDs []string) (_ []Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sets.bySessions")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(sessionIDs)))

	return r.selectSets(ctx, store.In("session_id", toAny(sessionIDs)...))
}

func (r *Records) SetsByWorkout(ctx context.Context, workoutID string) (_ []Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sets.byWorkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workoutID))

	return r.selectSets(ctx, store.Eq("workout_id", workoutID))
}

// ExerciseHistory returns every set of the exercise logged outside the given session.
func (r *Records) ExerciseHistory(ctx context.Context, exerciseID, excludeSessionID string) (_ []Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sets.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("exercise.id", exerciseID),
		attribute.String("session.excluded", excludeSessionID),
	)

	return r.selectSets(ctx, store.Eq("exercise_id", exerciseID), store.Neq("session_id", excludeSessionID))
}

func (r *Records) selectSets(ctx context.Context, where ...store.Cond) ([]Set, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Table:   store.TableSets,
		Where:   where,
		OrderBy: []store.Order{store.Asc("created_at")},
	})
	if err != nil {
		return nil, err
	}

	sets := make([]Set, 0, len(rows))
	for _, row := range rows {
		sets = append(sets, setFromRow(row))
	}
	return sets, nil
}

// ---------------- notes ----------------

func (r *Records) AddNote(ctx context.Context, exerciseID, note string) (_ *ExerciseNote, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.notes.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	n := ExerciseNote{
		ID:         uuid.NewString(),
		ExerciseID: exerciseID,
		Note:       note,
		CreatedAt:  r.now(),
	}
	if err := r.store.Insert(ctx, store.TableExerciseNotes, store.Row{
		"id":          n.ID,
		"exercise_id": n.ExerciseID,
		"note":        n.Note,
		"created_at":  n.CreatedAt,
	}); err != nil {
		return nil, err
	}
	return &n, nil
}

// LatestNote returns the current note of the exercise, nil if it has none.
func (r *Records) LatestNote(ctx context.Context, exerciseID string) (_ *ExerciseNote, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.notes.latest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	rows, err := r.store.Select(ctx, store.Query{
		Table:   store.TableExerciseNotes,
		Where:   []store.Cond{store.Eq("exercise_id", exerciseID)},
		OrderBy: []store.Order{store.Desc("created_at")},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return &ExerciseNote{
		ID:         rows[0].String("id"),
		ExerciseID: rows[0].String("exercise_id"),
		Note:       rows[0].String("note"),
		CreatedAt:  rows[0].Time("created_at"),
	}, nil
}

// ---------------- sessions ----------------

func (r *Records) AddWorkoutSession(ctx context.Context, sessionID, workoutID string) (_ *WorkoutSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sessions.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", sessionID))

	ws := WorkoutSession{
		SessionID:   sessionID,
		WorkoutID:   workoutID,
		CompletedAt: r.now(),
	}
	if err := r.store.Insert(ctx, store.TableWorkoutSessions, store.Row{
		"session_id":   ws.SessionID,
		"workout_id":   ws.WorkoutID,
		"completed_at": ws.CompletedAt,
	}); err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListWorkoutSessions returns completed sessions, newest first. limit <= 0 means all.
func (r *Records) ListWorkoutSessions(ctx context.Context, limit int) (_ []WorkoutSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sessions.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if limit < 0 {
		limit = 0
	}
	rows, err := r.store.Select(ctx, store.Query{
		Table:   store.TableWorkoutSessions,
		OrderBy: []store.Order{store.Desc("completed_at")},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]WorkoutSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, sessionFromRow(row))
	}
	return sessions, nil
}

// LastCompleted returns when the workout was last finished, nil if never.
func (r *Records) LastCompleted(ctx context.Context, workoutID string) (_ *time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "records.sessions.lastCompleted")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workoutID))

	rows, err := r.store.Select(ctx, store.Query{
		Table:   store.TableWorkoutSessions,
		Where:   []store.Cond{store.Eq("workout_id", workoutID)},
		OrderBy: []store.Order{store.Desc("completed_at")},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	completedAt := rows[0].Time("completed_at")
	return &completedAt, nil
}

// ---------------- rows ----------------

func workoutFromRow(row store.Row) Workout {
	return Workout{
		ID:        row.String("id"),
		Name:      row.String("name"),
		CreatedAt: row.Time("created_at"),
	}
}

func exerciseFromRow(row store.Row) Exercise {
	return Exercise{
		ID:        row.String("id"),
		Name:      row.String("name"),
		WorkoutID: row.String("workout_id"),
		NumSets:   row.Int("num_sets"),
		HasWarmup: row.Bool("has_warmup"),
		CreatedAt: row.Time("created_at"),
	}
}

func setFromRow(row store.Row) Set {
	return Set{
		ID:         row.String("id"),
		ExerciseID: row.String("exercise_id"),
		WorkoutID:  row.String("workout_id"),
		SessionID:  row.String("session_id"),
		Slot:       row.Int("sets"),
		Reps:       row.Int("reps"),
		Weight:     row.Float("weight"),
		CreatedAt:  row.Time("created_at"),
	}
}

func sessionFromRow(row store.Row) WorkoutSession {
	return WorkoutSession{
		SessionID:   row.String("session_id"),
		WorkoutID:   row.String("workout_id"),
		CompletedAt: row.Time("completed_at"),
	}
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
