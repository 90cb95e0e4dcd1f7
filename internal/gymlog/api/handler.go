package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/gymlog/session"
	"github.com/2beens/gymlog/internal/middleware"
	"github.com/2beens/gymlog/internal/telemetry/metrics"
	"github.com/2beens/gymlog/internal/telemetry/tracing"
	"github.com/2beens/gymlog/pkg"
)

// ConfirmHeader pre-answers any confirmation prompt of the request.
const ConfirmHeader = "X-Confirm"

type ErrorResponse struct {
	Error  string        `json:"error"`
	Prompt string        `json:"prompt,omitempty"`
	View   *session.View `json:"view,omitempty"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type Handler struct {
	machine *session.Machine
}

func NewHandler(machine *session.Machine) *Handler {
	return &Handler{
		machine: machine,
	}
}

// SetupRoutes registers the routes. Writes are rate limited when rateLimiter is set.
func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	writesPerMin int,
) {
	mainRouter.HandleFunc("/state", handler.handleState).Methods("GET", "OPTIONS").Name("state")
	mainRouter.HandleFunc("/workouts", handler.handleLoadWorkouts).Methods("GET", "OPTIONS").Name("list-workouts")
	mainRouter.HandleFunc("/workouts/{id}/exercises", handler.handleLoadExercises).Methods("GET", "OPTIONS").Name("list-exercises")
	mainRouter.HandleFunc("/start", handler.handleLoadStartWorkout).Methods("GET", "OPTIONS").Name("start-workout")
	mainRouter.HandleFunc("/session/workouts/{workoutId}/exercises", handler.handleLoadWorkoutExercises).Methods("GET", "OPTIONS").Name("session-exercises")
	mainRouter.HandleFunc("/session/exercises/{id}", handler.handleOpenExerciseDetail).Methods("GET", "OPTIONS").Name("exercise-detail")
	mainRouter.HandleFunc("/previous", handler.handleLoadPreviousWorkouts).Methods("GET", "OPTIONS").Name("previous-workouts")

	writes := mainRouter.NewRoute().Subrouter()
	writes.HandleFunc("/nav/home", handler.handleHome).Methods("POST", "OPTIONS").Name("nav-home")
	writes.HandleFunc("/nav/back", handler.handleBack).Methods("POST", "OPTIONS").Name("nav-back")
	writes.HandleFunc("/workouts", handler.handleCreateWorkout).Methods("POST", "OPTIONS").Name("new-workout")
	writes.HandleFunc("/workouts/{id}", handler.handleRenameWorkout).Methods("PUT", "OPTIONS").Name("rename-workout")
	writes.HandleFunc("/workouts/{id}", handler.handleDeleteWorkout).Methods("DELETE", "OPTIONS").Name("delete-workout")
	writes.HandleFunc("/workouts/{id}/exercises", handler.handleCreateExercise).Methods("POST", "OPTIONS").Name("new-exercise")
	writes.HandleFunc("/exercises/{id}", handler.handleUpdateExercise).Methods("PUT", "OPTIONS").Name("update-exercise")
	writes.HandleFunc("/exercises/{id}", handler.handleDeleteExercise).Methods("DELETE", "OPTIONS").Name("delete-exercise")
	writes.HandleFunc("/start/{workoutId}", handler.handleStartWorkoutSession).Methods("POST", "OPTIONS").Name("start-session")
	writes.HandleFunc("/session/draft", handler.handleUpdateDraft).Methods("PUT", "OPTIONS").Name("update-draft")
	writes.HandleFunc("/session/save", handler.handleSave).Methods("POST", "OPTIONS").Name("save-entry")
	writes.HandleFunc("/session/finish", handler.handleFinish).Methods("POST", "OPTIONS").Name("finish-session")

	if rateLimiter != nil && writesPerMin > 0 {
		writes.Use(middleware.RateLimit(rateLimiter, "gymlog-writes", writesPerMin, metricsManager))
	}
}

// requestConfirmer answers prompts from the request header and remembers the
// last prompt it had to decline.
type requestConfirmer struct {
	confirmed bool

	mutex  sync.Mutex
	prompt string
}

func (c *requestConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if c.confirmed {
		return true, nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.prompt = prompt
	return false, nil
}

func (c *requestConfirmer) lastPrompt() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.prompt
}

func withRequestConfirmer(ctx context.Context, r *http.Request) (context.Context, *requestConfirmer) {
	c := &requestConfirmer{
		confirmed: strings.EqualFold(r.Header.Get(ConfirmHeader), "yes"),
	}
	return session.WithConfirmer(ctx, c), c
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gymlog.ErrEmptyName),
		errors.Is(err, session.ErrInvalidDraft),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, gymlog.ErrWorkoutNotFound),
		errors.Is(err, gymlog.ErrExerciseNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNoActiveSession):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrSuperseded),
		errors.Is(err, session.ErrNotConfirmed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func decodeBody(r *http.Request, v any) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		return errors.Join(errBadRequest, errors.New("invalid content type"))
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func respond(w http.ResponseWriter, view session.View, err error, confirmer *requestConfirmer) {
	if err == nil {
		pkg.WriteJSONResponse(w, view, http.StatusOK)
		return
	}

	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), View: &view}
	if status == http.StatusInternalServerError {
		log.Errorf("gymlog request failed: %s", err)
		resp.Error = "internal error"
	} else {
		log.Debugf("gymlog request rejected [%d]: %s", status, err)
	}
	if confirmer != nil && errors.Is(err, session.ErrNotConfirmed) {
		resp.Prompt = confirmer.lastPrompt()
	}
	pkg.WriteJSONResponse(w, resp, status)
}

func (handler *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.state")
	defer span.End()
	respond(w, handler.machine.Current(), nil, nil)
}

func (handler *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.home")
	defer span.End()

	ctx, confirmer := withRequestConfirmer(ctx, r)
	view, err := handler.machine.Home(ctx)
	respond(w, view, err, confirmer)
}

func (handler *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.back")
	defer span.End()

	ctx, confirmer := withRequestConfirmer(ctx, r)
	view, err := handler.machine.Back(ctx)
	respond(w, view, err, confirmer)
}

func (handler *Handler) handleLoadWorkouts(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.workouts")
	defer span.End()

	view, err := handler.machine.LoadWorkouts(ctx)
	respond(w, view, err, nil)
}

func (handler *Handler) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.workouts.new")
	defer span.End()

	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		respond(w, handler.machine.Current(), err, nil)
		return
	}
	view, err := handler.machine.CreateWorkout(ctx, req.Name)
	respond(w, view, err, nil)
}

func (handler *Handler) handleRenameWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.workouts.rename")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("workout.id", id))

	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		respond(w, handler.machine.Current(), err, nil)
		return
	}
	view, err := handler.machine.RenameWorkout(ctx, id, req.Name)
	respond(w, view, err, nil)
}

func (handler *Handler) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.workouts.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("workout.id", id))

	ctx, confirmer := withRequestConfirmer(ctx, r)
	view, err := handler.machine.DeleteWorkout(ctx, id)
	respond(w, view, err, confirmer)
}

func (handler *Handler) handleLoadExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.exercises")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("workout.id", id))

	view, err := handler.machine.LoadExercises(ctx, id)
	respond(w, view, err, nil)
}

func (handler *Handler) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.exercises.new")
	defer span.End()

	workoutID := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("workout.id", workoutID))

	var in session.ExerciseInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, handler.machine.Current(), err, nil)
		return
	}
	view, err := handler.machine.CreateExercise(ctx, workoutID, in)
	respond(w, view, err, nil)
}

func (handler *Handler) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.exercises.update")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("exercise.id", id))

	var in session.ExerciseInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, handler.machine.Current(), err, nil)
		return
	}
	view, err := handler.machine.UpdateExercise(ctx, id, in)
	respond(w, view, err, nil)
}

func (handler *Handler) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.exercises.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("exercise.id", id))

	ctx, confirmer := withRequestConfirmer(ctx, r)
	view, err := handler.machine.DeleteExercise(ctx, id)
	respond(w, view, err, confirmer)
}

func (handler *Handler) handleLoadStartWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.start")
	defer span.End()

	view, err := handler.machine.LoadStartWorkout(ctx)
	respond(w, view, err, nil)
}

func (handler *Handler) handleStartWorkoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.session.start")
	defer span.End()

	workoutID := mux.Vars(r)["workoutId"]
	span.SetAttributes(attribute.String("workout.id", workoutID))

	view, err := handler.machine.StartWorkoutSession(ctx, workoutID)
	respond(w, view, err, nil)
}

func (handler *Handler) handleLoadWorkoutExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.session.exercises")
	defer span.End()

	workoutID := mux.Vars(r)["workoutId"]
	span.SetAttributes(attribute.String("workout.id", workoutID))

	view, err := handler.machine.LoadWorkoutExercises(ctx, workoutID)
	respond(w, view, err, nil)
}

func (handler *Handler) handleOpenExerciseDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.session.exercise")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("exercise.id", id))

	view, err := handler.machine.OpenExerciseDetail(ctx, id)
	respond(w, view, err, nil)
}

func (handler *Handler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.session.draft")
	defer span.End()

	var draft session.Draft
	if err := decodeBody(r, &draft); err != nil {
		respond(w, handler.machine.Current(), err, nil)
		return
	}
	view, err := handler.machine.UpdateDraft(ctx, draft)
	respond(w, view, err, nil)
}

func (handler *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.session.save")
	defer span.End()

	view, err := handler.machine.SaveExerciseEntry(ctx)
	respond(w, view, err, nil)
}

func (handler *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.session.finish")
	defer span.End()

	ctx, confirmer := withRequestConfirmer(ctx, r)
	view, err := handler.machine.FinishSession(ctx)
	respond(w, view, err, confirmer)
}

func (handler *Handler) handleLoadPreviousWorkouts(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymlog.previous")
	defer span.End()

	view, err := handler.machine.LoadPreviousWorkouts(ctx)
	respond(w, view, err, nil)
}
