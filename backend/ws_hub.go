package main

import (
	"context"
	"log"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/mediguard/mediguard/backend/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxWSConnections = 200

	// broadcastBuffer bounds the hub inbox so a stalled hub loop cannot
	// block stream workers; excess frames are dropped.
	broadcastBuffer = 64
)

// Frame is the wire shape of every observer message.
type Frame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

type outbound struct {
	event string
	data  []byte
}

// Hub fans events and alerts out to the connected websocket observers.
// Slow or dead observers are dropped instead of stalling producers: each
// client has a bounded send buffer and a full buffer unsubscribes it.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	mu         sync.Mutex
}

// NewHub creates an empty hub. Run must be started before publishing.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, broadcastBuffer),
	}
}

// Run is the hub main loop; it owns all client set mutations.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxWSConnections {
				h.mu.Unlock()
				client.close()
				observability.ObserversDropped.WithLabelValues("capacity").Inc()
				log.Printf("ws: connection rejected, max connections (%d) reached", maxWSConnections)
				continue
			}
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedObservers.Set(float64(total))
			log.Printf("ws: observer registered, total %d", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedObservers.Set(float64(total))
			log.Printf("ws: observer unregistered, total %d", total)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut delivers one frame to every subscriber present at the moment of
// the call. A subscriber whose buffer is full is dropped on the spot.
func (h *Hub) fanOut(msg outbound) {
	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.send <- msg.data:
		default:
			delete(h.clients, client)
			close(client.send)
			observability.ObserversDropped.WithLabelValues("backpressure").Inc()
			log.Printf("ws: observer send buffer full, dropping")
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	observability.ConnectedObservers.Set(float64(total))
	observability.BroadcastMessages.WithLabelValues(msg.event).Inc()
}

// Publish serializes {event, payload} and hands it to the hub loop. Never
// blocks: when the hub inbox is full the frame is dropped.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		log.Printf("ws: failed to marshal %s frame: %v", event, err)
		return
	}
	select {
	case h.broadcast <- outbound{event: event, data: data}:
	default:
		log.Printf("ws: broadcast buffer full, dropping %s frame", event)
	}
}

// Register hands a new connection to the hub loop.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a connection; safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// shutdown closes every client connection.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Printf("ws: shutting down hub with %d observers", len(h.clients))
	for client := range h.clients {
		close(client.send)
		client.close()
	}
	h.clients = make(map[*Client]bool)
	observability.ConnectedObservers.Set(0)
}
