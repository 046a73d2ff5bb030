package todo

import (
	"slices"

	"forge/internal/state"
)

// Stats summarizes the list
type Stats struct {
	Total     int    `json:"total"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Filter    Filter `json:"filter"`
}

// ComputeStats counts the items of s. An undecodable list counts as empty.
func ComputeStats(s state.State) Stats {
	stats := Stats{Filter: CurrentFilter(s)}

	items, err := Items(s)
	if err != nil {
		return stats
	}

	stats.Total = len(items)
	for _, item := range items {
		if item.Done {
			stats.Completed++
		}
	}
	stats.Active = stats.Total - stats.Completed
	return stats
}

// NewStats derives Stats from store. Listeners are only notified when the
// counts change. Listener failures go to onError, or are logged when it is nil.
func NewStats(store *state.Store, onError state.ErrorHandler) *state.Computed[Stats] {
	opts := state.ComputedOptions[Stats]{
		Equal:        func(a, b Stats) bool { return a == b },
		ErrorHandler: onError,
	}
	return state.NewComputedWithOptions(opts, func(values ...any) Stats {
		return ComputeStats(values[0].(state.State))
	}, store)
}

// NewVisible derives the filtered item list from store
func NewVisible(store *state.Store, onError state.ErrorHandler) *state.Computed[[]Item] {
	opts := state.ComputedOptions[[]Item]{
		Equal:        func(a, b []Item) bool { return slices.Equal(a, b) },
		ErrorHandler: onError,
	}
	return state.NewComputedWithOptions(opts, func(values ...any) []Item {
		s := values[0].(state.State)
		items, err := Items(s)
		if err != nil {
			return []Item{}
		}
		return Visible(items, CurrentFilter(s))
	}, store)
}
