package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientBufferSize = 16
	writeWait        = 5 * time.Second
)

type streamClient struct {
	id   string
	send chan []byte
}

// hub fans rendered snapshots out to websocket clients. Sends never block:
// a client whose buffer is full misses that snapshot.
type hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*streamClient
	closed  bool
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger:  logger,
		clients: make(map[string]*streamClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// add registers a client and queues latest() as its first message. Reading
// latest under the hub lock orders it before any later broadcast.
func (h *hub) add(latest func() []byte) (*streamClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false
	}
	c := &streamClient{
		id:   uuid.NewString(),
		send: make(chan []byte, clientBufferSize),
	}
	if data := latest(); len(data) > 0 {
		c.send <- data
	}
	h.clients[c.id] = c
	return c, true
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping snapshot for slow client", zap.String("client_id", c.id))
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// close disconnects every client and rejects new ones
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

// serve upgrades the request and streams snapshots until either side goes away
func (h *hub) serve(w http.ResponseWriter, r *http.Request, latest func() []byte) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c, ok := h.add(latest)
	if !ok {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	h.logger.Info("Websocket client connected",
		zap.String("client_id", c.id),
		zap.String("remote_addr", r.RemoteAddr))

	go h.writeLoop(conn, c)

	// Reads only detect disconnects; clients have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c.id)
	h.logger.Info("Websocket client disconnected", zap.String("client_id", c.id))
}

func (h *hub) writeLoop(conn *websocket.Conn, c *streamClient) {
	defer conn.Close()

	for data := range c.send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("Websocket write failed", zap.String("client_id", c.id), zap.Error(err))
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
