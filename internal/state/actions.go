package state

import (
	"fmt"
	"sort"
)

// Reducer computes a partial update from the current state and call arguments
type Reducer func(current State, args ...any) (State, error)

// Action is a reducer bound to a store
type Action func(args ...any) error

// Actions maps action names to bound actions
type Actions map[string]Action

// Dispatcher is the part of a store that bound actions need
type Dispatcher interface {
	UpdateState(fn Updater) error
}

// CreateActions binds every reducer to store. Each call of a bound action runs
// the reducer through UpdateState, so no other update lands between the read
// and the merge. A reducer error is returned and nothing is applied.
// Reducers must not call back into the store's update methods.
func CreateActions(store Dispatcher, reducers map[string]Reducer) Actions {
	actions := make(Actions, len(reducers))
	for name, reducer := range reducers {
		actions[name] = bind(store, name, reducer)
	}
	return actions
}

func bind(store Dispatcher, name string, reducer Reducer) Action {
	return func(args ...any) error {
		var failed error
		err := store.UpdateState(func(current State) (State, error) {
			partial, err := reducer(current, args...)
			if err != nil {
				failed = err
			}
			return partial, err
		})
		if failed != nil {
			return fmt.Errorf("action %s failed: %w", name, failed)
		}
		return err
	}
}

// Dispatch invokes the named action
func (a Actions) Dispatch(name string, args ...any) error {
	action, ok := a[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return action(args...)
}

// Names returns the bound action names in sorted order
func (a Actions) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
