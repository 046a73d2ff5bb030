package api

import (
	"encoding/json"
	"sync"
	"time"

	"forge/internal/clock"
	"forge/internal/state"

	"go.uber.org/zap"
)

// Snapshot is the JSON document rendered after every store notification
type Snapshot struct {
	Version    uint64      `json:"version"`
	RenderedAt time.Time   `json:"rendered_at"`
	State      state.State `json:"state"`
}

// Renderer keeps a JSON rendering of the store current. It renders once on
// creation and again on every notification, then hands the bytes to onRender.
type Renderer struct {
	logger   *zap.Logger
	clock    clock.Clock
	onRender func(data []byte)
	unsub    state.Unsubscribe

	mu      sync.RWMutex
	version uint64
	data    []byte
}

// NewRenderer subscribes to store, then renders its current state, so no update
// is missed between the two. onRender may be nil.
func NewRenderer(store *state.Store, logger *zap.Logger, clk clock.Clock, onRender func(data []byte)) *Renderer {
	r := &Renderer{
		logger:   logger,
		clock:    clk,
		onRender: onRender,
	}
	r.unsub = store.Subscribe(r.render)
	r.renderWith(store.GetState)
	return r
}

// Latest returns the last successful rendering and its version
func (r *Renderer) Latest() ([]byte, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data, r.version
}

// Close stops rendering. The last rendering stays available.
func (r *Renderer) Close() {
	r.unsub()
}

func (r *Renderer) render(s state.State) {
	r.renderWith(func() state.State { return s })
}

// renderWith reads the state to render under r.mu, so a rendering of a newer
// delivery is never overwritten by an older read
func (r *Renderer) renderWith(read func() state.State) {
	r.mu.Lock()
	next := r.version + 1
	data, err := json.Marshal(Snapshot{Version: next, RenderedAt: r.clock.Now(), State: read()})
	if err != nil {
		r.mu.Unlock()
		r.logger.Error("Failed to render state", zap.Error(err))
		return
	}
	r.version = next
	r.data = data
	r.mu.Unlock()

	r.logger.Debug("State rendered", zap.Uint64("version", next), zap.Int("bytes", len(data)))
	if r.onRender != nil {
		r.onRender(data)
	}
}
