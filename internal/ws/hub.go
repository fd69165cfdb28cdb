package ws

import (
	"context"
	"sync"
)

// topicMessage routes an encoded change to the subscribers of one topic.
type topicMessage struct {
	topic   string
	message []byte
}

// Hub maintains the set of active clients per topic and broadcasts
// change messages to them.
type Hub struct {
	// Registered clients by topic (logical table name)
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *topicMessage

	// done is closed when Run returns.
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. Call it as a goroutine: go hub.Run(ctx)
// When ctx is done every client is dropped and Run returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.rooms {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.topic] == nil {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[m.topic] {
				select {
				case client.send <- m.message:
				default:
					// Slow consumer: drop it, the client resyncs on reconnect
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.topic]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.topic)
	}
}

// Broadcast queues message for every client subscribed to topic.
// It is a no-op once the hub has stopped.
func (h *Hub) Broadcast(topic string, message []byte) {
	select {
	case h.broadcast <- &topicMessage{topic: topic, message: message}:
	case <-h.done:
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscribers reports how many clients are subscribed to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}
