// Package todo is a todo list built on the reactive store.
// Items live under the "todos" field and the active view under "filter".
package todo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"forge/internal/state"

	"github.com/google/uuid"
)

const (
	KeyTodos  = "todos"
	KeyFilter = "filter"
)

// Filter selects which items are visible
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

var (
	ErrEmptyTitle    = errors.New("title cannot be empty")
	ErrNotFound      = errors.New("todo not found")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrBadArgument   = errors.New("bad argument")
)

// Item is one todo entry
type Item struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Done  bool   `json:"done" yaml:"done"`
}

// InitialState returns an empty list showing all items
func InitialState() state.State {
	return state.State{
		KeyTodos:  []Item{},
		KeyFilter: string(FilterAll),
	}
}

// Items returns the todos held in s.
// Values decoded from JSON or YAML are converted to Items.
func Items(s state.State) ([]Item, error) {
	switch v := s[KeyTodos].(type) {
	case nil:
		return []Item{}, nil
	case []Item:
		return append([]Item(nil), v...), nil
	default:
		// Marshal and unmarshal to convert to target type
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal todos: %w", err)
		}
		var items []Item
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode todos: %w", err)
		}
		if items == nil {
			items = []Item{}
		}
		return items, nil
	}
}

// CurrentFilter returns the filter held in s, defaulting to FilterAll
func CurrentFilter(s state.State) Filter {
	if f, ok := s[KeyFilter].(string); ok && f != "" {
		return Filter(f)
	}
	return FilterAll
}

// Normalize converts loosely typed seed or persisted state into the typed
// shape used by the reducers. Items without an ID get one.
func Normalize(s state.State) (state.State, error) {
	items, err := Items(s)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}

	filter := CurrentFilter(s)
	if !filter.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}

	out := s.Clone()
	out[KeyTodos] = items
	out[KeyFilter] = string(filter)
	return out, nil
}

func (f Filter) valid() bool {
	switch f {
	case FilterAll, FilterActive, FilterCompleted:
		return true
	}
	return false
}

// Visible applies the filter to items
func Visible(items []Item, filter Filter) []Item {
	visible := make([]Item, 0, len(items))
	for _, item := range items {
		switch {
		case filter == FilterActive && item.Done:
			continue
		case filter == FilterCompleted && !item.Done:
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// Reducers returns the todo reducers keyed by action name:
//
//	add(title string)
//	toggle(id string)
//	rename(id, title string)
//	remove(id string)
//	clearCompleted()
//	setFilter(filter string)
func Reducers() map[string]state.Reducer {
	return map[string]state.Reducer{
		"add":            add,
		"toggle":         toggle,
		"rename":         rename,
		"remove":         remove,
		"clearCompleted": clearCompleted,
		"setFilter":      setFilter,
	}
}

// NewActions binds the todo reducers to store
func NewActions(store state.Dispatcher) state.Actions {
	return state.CreateActions(store, Reducers())
}

func add(current state.State, args ...any) (state.State, error) {
	title, err := stringArg(args, 0, "title")
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	items, err := Items(current)
	if err != nil {
		return nil, err
	}

	items = append(items, Item{ID: uuid.NewString(), Title: title})
	return state.State{KeyTodos: items}, nil
}

func toggle(current state.State, args ...any) (state.State, error) {
	id, err := stringArg(args, 0, "id")
	if err != nil {
		return nil, err
	}

	return updateItem(current, id, func(item *Item) error {
		item.Done = !item.Done
		return nil
	})
}

func rename(current state.State, args ...any) (state.State, error) {
	id, err := stringArg(args, 0, "id")
	if err != nil {
		return nil, err
	}
	title, err := stringArg(args, 1, "title")
	if err != nil {
		return nil, err
	}

	return updateItem(current, id, func(item *Item) error {
		title = strings.TrimSpace(title)
		if title == "" {
			return ErrEmptyTitle
		}
		item.Title = title
		return nil
	})
}

func remove(current state.State, args ...any) (state.State, error) {
	id, err := stringArg(args, 0, "id")
	if err != nil {
		return nil, err
	}

	items, err := Items(current)
	if err != nil {
		return nil, err
	}

	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return state.State{KeyTodos: kept}, nil
}

func clearCompleted(current state.State, _ ...any) (state.State, error) {
	items, err := Items(current)
	if err != nil {
		return nil, err
	}
	return state.State{KeyTodos: Visible(items, FilterActive)}, nil
}

func setFilter(_ state.State, args ...any) (state.State, error) {
	raw, err := stringArg(args, 0, "filter")
	if err != nil {
		return nil, err
	}

	filter := Filter(raw)
	if !filter.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
	}
	return state.State{KeyFilter: string(filter)}, nil
}

// updateItem copies the list, applies fn to the item with id and returns the partial update
func updateItem(current state.State, id string, fn func(item *Item) error) (state.State, error) {
	items, err := Items(current)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ID == id {
			if err := fn(&items[i]); err != nil {
				return nil, err
			}
			return state.State{KeyTodos: items}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func stringArg(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing %s", ErrBadArgument, name)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrBadArgument, name, args[i])
	}
	return s, nil
}
