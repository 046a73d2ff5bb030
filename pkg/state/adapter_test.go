package state_test

import (
	"testing"

	"forge/pkg/state"
	"forge/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublicAPI_TodoScenario(t *testing.T) {
	store := state.NewStore(state.State{"todos": []string{}})

	var received []state.State
	unsub := store.Subscribe(func(s state.State) { received = append(received, s) })
	defer unsub()

	err := store.UpdateState(func(s state.State) (state.State, error) {
		todos := append([]string{}, s["todos"].([]string)...)
		return state.State{"todos": append(todos, "a")}, nil
	})
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, state.State{"todos": []string{"a"}}, received[0])
	assert.Equal(t, state.State{"todos": []string{"a"}}, store.GetState())
}

func TestPublicAPI_ComputedAndActions(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := state.NewStore(state.State{"count": 0}, state.WithLogger(logger))

	doubled := state.Derive(store, func(s state.State) int { return s["count"].(int) * 2 })
	defer doubled.Dispose()

	actions := state.CreateActions(store, map[string]state.Reducer{
		"increment": func(s state.State, args ...any) (state.State, error) {
			return state.State{"count": s["count"].(int) + args[0].(int)}, nil
		},
	})

	require.NoError(t, actions.Dispatch("increment", 5))
	assert.Equal(t, 5, store.GetState()["count"])
	assert.Equal(t, 10, doubled.Get())

	require.NoError(t, actions["increment"](3))
	assert.Equal(t, 8, store.GetState()["count"])
	assert.Equal(t, 16, doubled.Get())

	assert.ErrorIs(t, actions.Dispatch("nope"), state.ErrUnknownAction)
}

func TestPublicAPI_CustomMiddleware(t *testing.T) {
	var seen []state.State
	audit := func(s state.StateReader) func(next state.Commit) state.Commit {
		return func(next state.Commit) state.Commit {
			return func(partial state.State) {
				seen = append(seen, partial)
				next(partial)
			}
		}
	}

	store := state.NewStore(state.State{}, state.WithMiddleware(audit))
	store.SetState(state.State{"a": 1})

	assert.Equal(t, []state.State{{"a": 1}}, seen)
	assert.NotNil(t, state.UnwrapStore(store))
}

func TestPublicAPI_Persistence(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	storage := state.NewMemoryStorage()

	store := state.NewStore(
		state.LoadPersistedState(storage, "prefs", state.State{"theme": "light"}, logger),
		state.WithMiddleware(state.PersistenceMiddleware(storage, "prefs", logger)),
	)
	assert.Equal(t, "light", store.GetState()["theme"])

	store.SetState(state.State{"theme": "dark"})

	restored := state.LoadPersistedState(storage, "prefs", state.State{"theme": "light"}, logger)
	assert.Equal(t, "dark", restored["theme"])
}

func TestPublicAPI_TestEnv(t *testing.T) {
	env := testutil.NewTestEnv(state.State{"count": 0})
	defer env.Cleanup()

	actions := state.CreateActions(env.Store, map[string]state.Reducer{
		"increment": func(s state.State, args ...any) (state.State, error) {
			return state.State{"count": s["count"].(int) + args[0].(int)}, nil
		},
	})

	require.NoError(t, actions.Dispatch("increment", 5))
	require.NoError(t, actions.Dispatch("increment", 3))

	assert.Equal(t, []state.State{{"count": 5}, {"count": 8}}, env.Snapshots.Values())

	env.Store.Reset()
	last, _ := env.Snapshots.Last()
	assert.Equal(t, state.State{"count": 0}, last)
}
