package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	clientBuffer      = 16
	heartbeatInterval = 25 * time.Second
)

// Event is one server-sent event
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type client struct {
	id     string
	events chan Event
}

// Manager fans dashboard events out to every connected EventSource client
type Manager struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	clients    map[string]*client
	logger     *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		clients:    make(map[string]*client),
		logger:     logger,
	}
}

// Run owns the client set. It must be started once in its own goroutine.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.clients[c.id] = c
			m.logger.Debug("sse client connected", zap.String("client_id", c.id), zap.Int("clients", len(m.clients)))
		case c := <-m.unregister:
			if _, ok := m.clients[c.id]; ok {
				delete(m.clients, c.id)
				close(c.events)
			}
		case ev := <-m.broadcast:
			for id, c := range m.clients {
				select {
				case c.events <- ev:
				default:
					// Slow consumer, drop it rather than block everyone else
					delete(m.clients, id)
					close(c.events)
					m.logger.Warn("dropping slow sse client", zap.String("client_id", id))
				}
			}
		}
	}
}

// Broadcast queues an event for all clients. It never blocks the caller.
func (m *Manager) Broadcast(eventType string, payload interface{}) {
	ev := Event{Type: eventType, Payload: payload, Timestamp: time.Now()}
	select {
	case m.broadcast <- ev:
	default:
		m.logger.Warn("sse broadcast queue full, event dropped", zap.String("type", eventType))
	}
}

// ServeHTTP streams events to one client until it disconnects
func (m *Manager) ServeHTTP(c *gin.Context) {
	cl := &client{id: uuid.New().String(), events: make(chan Event, clientBuffer)}
	m.register <- cl
	defer func() {
		m.unregister <- cl
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	writeEvent(c.Writer, Event{Type: "connected", Payload: gin.H{"clientId": cl.id}, Timestamp: time.Now()})
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cl.events:
			if !ok {
				return
			}
			writeEvent(c.Writer, ev)
			c.Writer.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			c.Writer.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
