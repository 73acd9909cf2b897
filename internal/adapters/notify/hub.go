package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

// Message is the envelope pushed to websocket clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one websocket connection of one user.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan Message
}

// Hub tracks connected clients per user and fans messages out to them.
type Hub struct {
	logger   ports.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
}

// NewHub initializes and returns a new Hub.
func NewHub(logger ports.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks are done by the fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]map[*Client]struct{}),
	}
}

// ServeWS upgrades the request and registers the connection for userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "Websocket upgrade failed", map[string]interface{}{"userID": userID, "error": err.Error()})
		return
	}
	c := &Client{userID: userID, conn: conn, send: make(chan Message, clientSendSize)}
	h.register(c)

	go c.writePump()
	go c.readPump(h)
}

// Connected returns the number of open connections for userID.
func (h *Hub) Connected(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// Push delivers a notification to every connection of its recipient.
// Slow clients whose buffer is full are dropped.
func (h *Hub) Push(ctx context.Context, n domain.Notification) int {
	msg := Message{Event: string(n.Type), Data: n}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for c := range h.clients[n.UserID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			h.logger.Warn(ctx, "Dropping slow websocket client", map[string]interface{}{"userID": n.UserID})
			h.removeLocked(c)
		}
	}
	return delivered
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug(context.Background(), "Websocket client registered", map[string]interface{}{"userID": c.userID})
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes the client's send channel exactly once; h.mu must be held.
func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// readPump drains inbound frames so control messages are processed.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug(context.Background(), "Websocket read error", map[string]interface{}{"userID": c.userID, "error": err.Error()})
			}
			return
		}
	}
}

// writePump sends queued messages and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
