package ws

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/auth"
	"github.com/tableside/api/internal/enum"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // staff topics are gated by JWT, the rest is public data
	},
}

// Client represents a single WebSocket subscription to one topic.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

// ReadPump only detects disconnects; subscribers never send data.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("topic", c.topic).Warn("websocket read")
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
// Each change is sent as its own text frame so clients can decode them
// one by one.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Authorize decides whether a subscription to topic may be opened with the
// given token. Menu data is public; orders and tables need a staff token.
// It returns the HTTP status to reject with, or 0 when allowed.
func Authorize(jwtSecret, topic, token string) (int, string) {
	if !enum.IsTopic(topic) {
		return http.StatusNotFound, "unknown topic"
	}
	if topic == enum.TopicMenuItems || topic == enum.TopicCategories {
		return 0, ""
	}
	if token == "" {
		return http.StatusUnauthorized, "missing token"
	}
	claims, err := auth.ValidateToken(jwtSecret, token)
	if err != nil {
		return http.StatusUnauthorized, "invalid token"
	}
	if claims.Role != enum.UserRoleAdmin && claims.Role != enum.UserRoleKitchen {
		return http.StatusForbidden, "insufficient permissions"
	}
	return 0, ""
}

// ServeWS handles WebSocket subscriptions.
// Endpoint: WS /ws/{table}?token=JWT
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "table")
	if status, msg := Authorize(jwtSecret, topic, r.URL.Query().Get("token")); status != 0 {
		http.Error(w, msg, status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade")
		return
	}

	client := &Client{
		hub:   hub,
		conn:  conn,
		topic: topic,
		send:  make(chan []byte, 256),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
