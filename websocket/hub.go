// Package websocket implements the progress broadcaster: a fan-out hub
// that publishes job-state and progress events to every connected
// observer. Delivery is fire-and-forget; there is no replay for late
// joiners and no per-observer filtering.
package websocket

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Event is the envelope written to observers.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub interface defines the broadcast sink consumed by the service layer
// and the client registration used by the transport layer.
type Hub interface {
	Run()
	Publish(event string, data any)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

// hub maintains the set of active clients and fans events out to them.
type hub struct {
	clients map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	log *log.Logger
	mu  sync.RWMutex
}

// NewHub creates a new broadcast hub.
func NewHub(logger *log.Logger) Hub {
	return &hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        logger.With("component", "hub"),
	}
}

// Run starts the hub's event loop. It is meant to run in its own
// goroutine for the lifetime of the process.
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("observer connected", "observers", h.observerCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Info("observer disconnected", "observers", h.observerCount())

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// Slow observer: drop it rather than block the fan-out.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for fan-out to all connected observers. It
// never blocks the publisher: when the broadcast buffer is full the
// event is dropped.
func (h *hub) Publish(event string, data any) {
	select {
	case h.broadcast <- Event{Event: event, Data: data}:
	default:
		h.log.Warn("broadcast buffer full, dropping event", "event", event)
	}
}

// RegisterClient registers a new observer with the hub.
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient removes an observer from the hub.
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (h *hub) observerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
