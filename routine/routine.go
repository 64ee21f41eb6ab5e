// Package routine defines the records the cache subsystem stores: workout
// routines and per-owner preferences, plus the Timestamp type that
// normalizes the date shapes upstream documents arrive in.
package routine

import "sort"

// Routine is a workout routine document. IDs are assigned by the remote
// database and are stable.
type Routine struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	OwnerID    string       `json:"ownerId"`
	CreatedAt  Timestamp    `json:"createdAt"`
	StartDate  *Timestamp   `json:"startDate,omitempty"`
	EndDate    *Timestamp   `json:"endDate,omitempty"`
	Days       []RoutineDay `json:"days,omitempty"`
	SharedWith []string     `json:"sharedWith,omitempty"`
	Notes      string       `json:"notes,omitempty"`
}

// RoutineDay is one training day inside a routine.
type RoutineDay struct {
	Name      string        `json:"name"`
	Exercises []ExerciseSet `json:"exercises,omitempty"`
}

// ExerciseSet is a single exercise slot within a day.
type ExerciseSet struct {
	ExerciseID string  `json:"exerciseId"`
	Name       string  `json:"name"`
	Sets       int     `json:"sets"`
	Reps       int     `json:"reps"`
	Weight     float64 `json:"weight,omitempty"`
}

// Preferences holds a user's application settings, one record per owner.
type Preferences struct {
	AccentColor   string `json:"accentColor,omitempty"`
	Language      string `json:"language,omitempty"`
	Notifications bool   `json:"notifications"`
	WeightUnit    string `json:"weightUnit,omitempty"`
}

// SortNewestFirst orders routines by creation time descending, in place.
// Ties keep their relative order so repeated sorts are stable.
func SortNewestFirst(items []Routine) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Seconds > items[j].CreatedAt.Seconds
	})
}

// DedupeByID removes routines with a duplicate ID, keeping the first
// occurrence. The input order is preserved.
func DedupeByID(items []Routine) []Routine {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
