// Package pb decides personal bests over in-memory set collections.
//
// Rules:
//   - only sets with reps > 0 and weight > 0 count, and never the warm-up slot
//     (slot 0) of an exercise that has one;
//   - the best set is the heaviest, ties broken by reps;
//   - a session beats history when one of its sets is heavier than anything
//     lifted before, or matches an earlier weight with more reps than ever done
//     at that weight. A lighter weight for more reps is not a PB.
package pb

import (
	"sort"

	"github.com/2beens/gymlog/internal/gymlog"
)

// Normalize returns the sets eligible for PB comparison. It never modifies
// its input and is idempotent.
func Normalize(sets []gymlog.Set, hasWarmup bool) []gymlog.Set {
	normalized := make([]gymlog.Set, 0, len(sets))
	for _, s := range sets {
		if s.Reps <= 0 || s.Weight <= 0 {
			continue
		}
		if hasWarmup && s.Slot == 0 {
			continue
		}
		normalized = append(normalized, s)
	}
	return normalized
}

// BestSet returns the heaviest eligible set, ties broken by reps.
// The bool is false when no set is eligible.
func BestSet(sets []gymlog.Set, hasWarmup bool) (gymlog.Set, bool) {
	var (
		best  gymlog.Set
		found bool
	)
	for _, s := range Normalize(sets, hasWarmup) {
		if !found || s.Weight > best.Weight || (s.Weight == best.Weight && s.Reps > best.Reps) {
			best = s
			found = true
		}
	}
	return best, found
}

// IsSessionPB reports whether today's sets beat history.
func IsSessionPB(today, history []gymlog.Set, hasWarmup bool) bool {
	todayNorm := Normalize(today, hasWarmup)
	if len(todayNorm) == 0 {
		return false
	}
	historyNorm := Normalize(history, hasWarmup)
	if len(historyNorm) == 0 {
		// first ever logged performance
		return true
	}

	prevMaxWeight := 0.0
	maxRepsAtWeight := make(map[float64]int)
	for _, s := range historyNorm {
		if s.Weight > prevMaxWeight {
			prevMaxWeight = s.Weight
		}
		if s.Reps > maxRepsAtWeight[s.Weight] {
			maxRepsAtWeight[s.Weight] = s.Reps
		}
	}

	for _, s := range todayNorm {
		if s.Weight > prevMaxWeight {
			return true
		}
		if maxReps, seen := maxRepsAtWeight[s.Weight]; seen && s.Reps > maxReps {
			return true
		}
	}

	return false
}

// GroupByExercise indexes sets by exercise id, keeping their order.
func GroupByExercise(sets []gymlog.Set) map[string][]gymlog.Set {
	groups := make(map[string][]gymlog.Set)
	for _, s := range sets {
		groups[s.ExerciseID] = append(groups[s.ExerciseID], s)
	}
	return groups
}

// ExerciseIDs returns the keys of groups, sorted.
func ExerciseIDs(groups map[string][]gymlog.Set) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SlotPlaceholders picks, for every slot in [0, slots), the most recent set
// logged at that slot. Missing slots stay nil.
func SlotPlaceholders(history []gymlog.Set, slots int) []*gymlog.Set {
	placeholders := make([]*gymlog.Set, slots)
	for i := range history {
		s := history[i]
		if s.Slot < 0 || s.Slot >= slots {
			continue
		}
		current := placeholders[s.Slot]
		if current == nil || !s.CreatedAt.Before(current.CreatedAt) {
			placeholders[s.Slot] = &s
		}
	}
	return placeholders
}
