package session

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/2beens/gymlog/internal/cache"
	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/telemetry/metrics"
)

const workoutsKey = "all"

// Caches groups the record caches the machine reads through. Exercises, Bests and
// LastCompleted are keyed by workout id. Bests maps exercise id to the best set ever
// logged for it, so its entries stay small however long the history grows.
type Caches struct {
	Workouts      *cache.Cache[[]gymlog.Workout]
	Exercises     *cache.Cache[[]gymlog.Exercise]
	Bests         *cache.Cache[map[string]gymlog.Set]
	LastCompleted *cache.Cache[*time.Time]
}

func NewCaches(backend cache.Backend, ttl time.Duration, metricsManager *metrics.Manager) *Caches {
	return &Caches{
		Workouts:      cache.New[[]gymlog.Workout]("workouts", backend, ttl, metricsManager),
		Exercises:     cache.New[[]gymlog.Exercise]("exercises", backend, ttl, metricsManager),
		Bests:         cache.New[map[string]gymlog.Set]("bests", backend, ttl, metricsManager),
		LastCompleted: cache.New[*time.Time]("last_completed", backend, ttl, metricsManager),
	}
}

// Wait blocks until all background refreshes are done.
func (c *Caches) Wait() {
	c.Workouts.Wait()
	c.Exercises.Wait()
	c.Bests.Wait()
	c.LastCompleted.Wait()
}

// invalidateWorkoutData drops what a new set or a finished session makes stale.
func (c *Caches) invalidateWorkoutData(ctx context.Context, workoutID string) error {
	return multierr.Combine(
		c.Exercises.Invalidate(ctx, workoutID),
		c.Bests.Invalidate(ctx, workoutID),
		c.LastCompleted.Clear(ctx),
	)
}
