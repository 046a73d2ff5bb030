package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Commit applies a partial update to a store
type Commit func(partial State)

// StateReader reads the current state of a store
type StateReader interface {
	GetState() State
}

// Middleware wraps the commit path of a store.
// It is called once per store at construction with the store it decorates.
// Commits run under the store's update lock, before listeners are notified,
// so middleware may read the store but must not update it.
type Middleware func(s StateReader) func(next Commit) Commit

// LoggerMiddleware logs the state before and after every update
func LoggerMiddleware(logger *zap.Logger) Middleware {
	return func(s StateReader) func(next Commit) Commit {
		return func(next Commit) Commit {
			return func(partial State) {
				logger.Debug("State update",
					zap.Any("previous", s.GetState()),
					zap.Any("update", partial))
				next(partial)
				logger.Debug("State updated",
					zap.Any("current", s.GetState()))
			}
		}
	}
}

// Storage is a string key/value backend for persisted state
type Storage interface {
	// GetItem returns the stored value and whether the key exists
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

// MemoryStorage is an in-process Storage
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// PersistenceMiddleware writes the full state to storage under key after every update.
// Failures are logged and never reach the caller.
func PersistenceMiddleware(storage Storage, key string, logger *zap.Logger) Middleware {
	return func(s StateReader) func(next Commit) Commit {
		return func(next Commit) Commit {
			return func(partial State) {
				next(partial)

				if err := persist(storage, key, s.GetState()); err != nil {
					logger.Error("Failed to persist state",
						zap.String("key", key),
						zap.Error(err))
				}
			}
		}
	}
}

func persist(storage Storage, key string, current State) error {
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := storage.SetItem(key, string(data)); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}

// LoadPersistedState reads the state stored under key.
// It returns def when the key is absent or the entry cannot be decoded.
func LoadPersistedState(storage Storage, key string, def State, logger *zap.Logger) State {
	raw, ok, err := storage.GetItem(key)
	if err != nil {
		logger.Error("Failed to load persisted state",
			zap.String("key", key),
			zap.Error(err))
		return def
	}
	if !ok {
		return def
	}

	var loaded State
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		logger.Error("Failed to decode persisted state",
			zap.String("key", key),
			zap.Error(err))
		return def
	}

	return loaded
}
