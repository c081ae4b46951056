package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"expensecontrol/internal/middleware"
	"expensecontrol/internal/model"
	"expensecontrol/internal/principal"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer  = 256
	eventBuffer = 256
	writeWait   = 10 * time.Second
)

// Client represents a single connected WebSocket client
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	role   model.Role
	branch string
}

// wants reports whether the client may see event: admins see everything,
// branches only their own requests.
func (c *Client) wants(event model.RequestEvent) bool {
	if c.role == model.RoleAdmin {
		return true
	}
	return c.role == model.RoleBranch && c.branch != "" && c.branch == event.Branch
}

// Hub fans request events out to the connected clients allowed to see them.
type Hub struct {
	clients    map[*Client]bool
	events     chan model.RequestEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        logrus.FieldLogger
	upgrader   websocket.Upgrader
}

// NewHub builds a hub. An empty allowedOrigins accepts any origin.
func NewHub(log logrus.FieldLogger, allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		events:     make(chan model.RequestEvent, eventBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || set["*"] || origin == "" || set[origin]
	}
}

// Publish queues event for delivery. It never blocks; when the queue is full the event is dropped.
func (h *Hub) Publish(event model.RequestEvent) {
	select {
	case h.events <- event:
	default:
		h.log.WithFields(logrus.Fields{
			"event":      event.Event,
			"request_id": event.RequestID,
		}).Warn("websocket event queue full, dropping event")
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run dispatches registrations and events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{"role": client.role, "branch": client.branch}).Debug("websocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("websocket client disconnected")
			}
			h.mu.Unlock()
		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event model.RequestEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("failed to encode websocket event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		// Fast track writing queued messages
		n := len(c.send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains the connection so close frames are noticed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
	}
}

// ServeWs upgrades authenticated callers. Browsers cannot set headers on a
// websocket handshake, so the token may also come from the token query parameter.
func (h *Hub) ServeWs(secret []byte, accounts principal.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			var err error
			if tokenString, err = middleware.TokenFromRequest(c); err != nil {
				h.log.Debug("websocket connection rejected: missing token")
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
				return
			}
		}
		username, err := middleware.ParseSubject(secret, tokenString)
		if err != nil {
			h.log.Debug("websocket connection rejected: invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}
		account, err := accounts.CurrentAccount(principal.WithUsername(c.Request.Context(), username))
		if err != nil {
			status, body := response.FromError(err)
			c.AbortWithStatusJSON(status, body)
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		client := &Client{
			hub:    h,
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			role:   account.Role,
			branch: account.Branch,
		}
		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
