// Package realtime pushes tree change notifications to connected admin
// consoles over WebSocket.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"backoffice-backend/shared/services"
)

const (
	MessageConnection = "connection"
	MessageTreeEvent  = "tree_event"
	MessagePong       = "pong"

	sendBuffer = 64
	writeWait  = 10 * time.Second
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "backoffice",
	Name:      "ws_connections",
	Help:      "Open tree event WebSocket connections.",
})

// Message is the envelope written to every client.
type Message struct {
	Type      string              `json:"type"`
	Event     *services.TreeEvent `json:"event,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

type client struct {
	id     string
	userID int64
	conn   *websocket.Conn
	send   chan Message
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// trySend queues msg without blocking. It reports false when the client
// buffer is full or the client is closed.
func (c *client) trySend(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub fans tree events out to every connected client. It implements
// services.TreeEventPublisher.
type Hub struct {
	clients    map[string]*client
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan Message
}

// NewHub builds a hub accepting browser connections from allowedOrigins.
// Requests without an Origin header are always accepted.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		clients:    make(map[string]*client),
		register:   make(chan *client, 100),
		unregister: make(chan *client, 100),
		broadcast:  make(chan Message, 1000),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			logrus.WithField("origin", origin).Warn("websocket connection rejected")
			return false
		},
	}
	return h
}

// Run handles the hub event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(c *client) {
	h.mutex.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mutex.Unlock()

	connectionsGauge.Inc()
	logrus.WithFields(logrus.Fields{"client": c.id, "user_id": c.userID, "total": total}).Info("websocket client connected")
	c.trySend(Message{Type: MessageConnection, Timestamp: time.Now().UTC()})
}

func (h *Hub) unregisterClient(c *client) {
	h.mutex.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	total := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}
	c.close()
	connectionsGauge.Dec()
	logrus.WithFields(logrus.Fields{"client": c.id, "total": total}).Info("websocket client disconnected")
}

func (h *Hub) broadcastMessage(msg Message) {
	h.mutex.RLock()
	var slow []*client
	for _, c := range h.clients {
		if !c.trySend(msg) {
			slow = append(slow, c)
		}
	}
	h.mutex.RUnlock()

	for _, c := range slow {
		logrus.WithField("client", c.id).Warn("websocket client too slow, disconnecting")
		h.unregisterClient(c)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
		connectionsGauge.Dec()
	}
}

// PublishTreeEvent queues ev for broadcast. Events are dropped when the
// queue is full.
func (h *Hub) PublishTreeEvent(ev services.TreeEvent) {
	msg := Message{Type: MessageTreeEvent, Event: &ev, Timestamp: ev.At}
	select {
	case h.broadcast <- msg:
	default:
		logrus.WithFields(logrus.Fields{"tree": ev.Tree, "action": ev.Action, "id": ev.ID}).Warn("broadcast queue full, dropping tree event")
	}
}

// ConnectionCount returns the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves the connection until the peer
// goes away. The authenticated user id is read from the "user_id" key.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("failed to upgrade websocket")
		return
	}

	cl := &client{
		id:     uuid.New().String(),
		userID: c.GetInt64("user_id"),
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		done:   make(chan struct{}),
	}
	h.register <- cl

	go cl.writePump()
	h.readPump(cl)
}

func (h *Hub) readPump(cl *client) {
	defer func() {
		select {
		case h.unregister <- cl:
		default:
			h.unregisterClient(cl)
		}
	}()

	for {
		var in map[string]any
		if err := cl.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("client", cl.id).Warn("websocket read failed")
			}
			return
		}
		if t, _ := in["type"].(string); t == "ping" {
			cl.trySend(Message{Type: MessagePong, Timestamp: time.Now().UTC()})
		}
	}
}

// writePump is the only writer of cl.conn.
func (cl *client) writePump() {
	defer cl.conn.Close()
	for {
		select {
		case <-cl.done:
			_ = cl.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(msg); err != nil {
				logrus.WithError(err).WithField("client", cl.id).Debug("websocket write failed")
				return
			}
		}
	}
}
