package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/gymlog/pb"
	"github.com/2beens/gymlog/internal/store"
	"github.com/2beens/gymlog/internal/telemetry/metrics"
	"github.com/2beens/gymlog/internal/telemetry/tracing"
)

//go:generate mockgen -source=$GOFILE -destination=reconcile_mocks_test.go -package=reconcile_test

type recordsRepo interface {
	AddWorkoutSession(ctx context.Context, sessionID, workoutID string) (*gymlog.WorkoutSession, error)
	SetsBySession(ctx context.Context, sessionID string) ([]gymlog.Set, error)
	ExercisesByIDs(ctx context.Context, ids []string) ([]gymlog.Exercise, error)
	ExerciseHistory(ctx context.Context, exerciseID, excludeSessionID string) ([]gymlog.Set, error)
}

type ExerciseResult struct {
	ExerciseID string       `json:"exerciseId"`
	Name       string       `json:"name"`
	Sets       []gymlog.Set `json:"sets"`
	Best       *gymlog.Set  `json:"best,omitempty"`
	IsPB       bool         `json:"isPb"`
}

type Summary struct {
	SessionID     string           `json:"sessionId"`
	WorkoutID     string           `json:"workoutId"`
	CompletedAt   time.Time        `json:"completedAt"`
	NothingLogged bool             `json:"nothingLogged"`
	PersonalBests []string         `json:"personalBests"`
	Exercises     []ExerciseResult `json:"exercises"`
}

// Message renders the summary the way it is shown to the user after finishing.
func (s *Summary) Message() string {
	var sb strings.Builder
	sb.WriteString("Workout finished!\n")
	if s.NothingLogged {
		sb.WriteString("No sets logged, so no PBs today.")
		return sb.String()
	}
	if len(s.PersonalBests) == 0 {
		sb.WriteString("No PBs today.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "PBs today: %d\n", len(s.PersonalBests))
	for _, name := range s.PersonalBests {
		fmt.Fprintf(&sb, "\n• %s", name)
	}
	return sb.String()
}

type Reconciler struct {
	repo           recordsRepo
	metricsManager *metrics.Manager
}

func NewReconciler(repo recordsRepo, metricsManager *metrics.Manager) *Reconciler {
	return &Reconciler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

// Finish marks the session as completed and decides, per exercise trained in it,
// whether the session beat the exercise history. Any read failure aborts the finish,
// but the completion record already written stays and a retry reuses it.
func (r *Reconciler) Finish(ctx context.Context, sessionID, workoutID string) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "reconciler.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("workout.id", workoutID),
	)

	start := time.Now()
	defer func() {
		if err == nil && r.metricsManager != nil {
			r.metricsManager.HistogramFinishDuration.Observe(time.Since(start).Seconds())
		}
	}()

	ws, err := r.repo.AddWorkoutSession(ctx, sessionID, workoutID)
	switch {
	case errors.Is(err, store.ErrConflict):
		// written by an earlier attempt that failed further on
		log.Infof("session %s already marked as completed", sessionID)
		ws = &gymlog.WorkoutSession{
			SessionID:   sessionID,
			WorkoutID:   workoutID,
			CompletedAt: time.Now().UTC(),
		}
	case err != nil:
		return nil, fmt.Errorf("write workout session: %w", err)
	}

	summary := &Summary{
		SessionID:     sessionID,
		WorkoutID:     workoutID,
		CompletedAt:   ws.CompletedAt,
		PersonalBests: []string{},
		Exercises:     []ExerciseResult{},
	}

	sessionSets, err := r.repo.SetsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session sets: %w", err)
	}
	if len(sessionSets) == 0 {
		log.Debugf("session %s finished with nothing logged", sessionID)
		summary.NothingLogged = true
		r.countFinished(0)
		return summary, nil
	}

	groups := pb.GroupByExercise(sessionSets)
	exerciseIDs := pb.ExerciseIDs(groups)

	exercises, err := r.repo.ExercisesByIDs(ctx, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch session exercises: %w", err)
	}
	byID := make(map[string]gymlog.Exercise, len(exercises))
	for _, ex := range exercises {
		byID[ex.ID] = ex
	}

	for _, exerciseID := range exerciseIDs {
		ex, ok := byID[exerciseID]
		if !ok {
			// deleted while the session was running
			ex = gymlog.Exercise{ID: exerciseID, Name: exerciseID}
		}

		history, err := r.repo.ExerciseHistory(ctx, exerciseID, sessionID)
		if err != nil {
			return nil, fmt.Errorf("fetch history of exercise %s: %w", exerciseID, err)
		}

		today := groups[exerciseID]
		result := ExerciseResult{
			ExerciseID: exerciseID,
			Name:       ex.Name,
			Sets:       today,
			IsPB:       pb.IsSessionPB(today, history, ex.HasWarmup),
		}
		if best, ok := pb.BestSet(today, ex.HasWarmup); ok {
			result.Best = &best
		}
		if result.IsPB {
			summary.PersonalBests = append(summary.PersonalBests, ex.Name)
		}
		summary.Exercises = append(summary.Exercises, result)
	}

	sort.Strings(summary.PersonalBests)
	sort.Slice(summary.Exercises, func(i, j int) bool {
		return summary.Exercises[i].Name < summary.Exercises[j].Name
	})

	log.Debugf("session %s finished: %d exercises, %d PBs", sessionID, len(summary.Exercises), len(summary.PersonalBests))
	r.countFinished(len(summary.PersonalBests))

	return summary, nil
}

func (r *Reconciler) countFinished(personalBests int) {
	if r.metricsManager == nil {
		return
	}
	r.metricsManager.CounterSessionsFinished.Inc()
	r.metricsManager.CounterPersonalBests.Add(float64(personalBests))
}
