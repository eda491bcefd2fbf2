package websocket

import (
	"encoding/json"
	"sync"

	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/pkg/logger"
)

const (
	sendBufferSize      = 32
	broadcastBufferSize = 1024
)

// Client is one live subscriber to a single store's rating events
type Client struct {
	hub     *Hub
	conn    *Conn
	UserID  uint
	StoreID uint
	send    chan []byte
}

// NewClient creates a client for storeID. conn may be nil in tests.
func NewClient(hub *Hub, conn *Conn, userID, storeID uint) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		UserID:  userID,
		StoreID: storeID,
		send:    make(chan []byte, sendBufferSize),
	}
}

// Messages returns the outbound queue of the client
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Hub fans rating events out to the subscribers of each store
type Hub struct {
	// StoreID -> set of clients
	stores map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan model.RatingEvent
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		stores:     make(map[uint]map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan model.RatingEvent, broadcastBufferSize),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.stores[client.StoreID]; !ok {
				h.stores[client.StoreID] = make(map[*Client]bool)
			}
			h.stores[client.StoreID][client] = true
			subscribers := len(h.stores[client.StoreID])
			h.mu.Unlock()
			logger.Info("Live rating subscriber registered", map[string]interface{}{
				"user_id":     client.UserID,
				"store_id":    client.StoreID,
				"subscribers": subscribers,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			logger.Info("Live rating subscriber unregistered", map[string]interface{}{
				"user_id":  client.UserID,
				"store_id": client.StoreID,
			})

		case event := <-h.broadcast:
			h.deliver(event)

		case <-h.done:
			h.mu.Lock()
			for _, clients := range h.stores {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(event model.RatingEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to encode rating event", err, map[string]interface{}{
			"store_id": event.StoreID,
		})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.stores[event.StoreID] {
		select {
		case client.send <- payload:
		default:
			// Slow reader; closing send makes its write pump hang up
			h.remove(client)
			logger.Warn("Subscriber send buffer full, disconnecting", map[string]interface{}{
				"user_id":  client.UserID,
				"store_id": client.StoreID,
			})
		}
	}
}

// remove must be called with h.mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.stores[client.StoreID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.stores, client.StoreID)
	}
	close(client.send)
}

// Register subscribes a client to its store
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client and closes its queue
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a committed rating event for delivery. It never blocks
// the caller; events are dropped when the hub is saturated or stopped.
func (h *Hub) Publish(event model.RatingEvent) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- event:
	default:
		logger.Warn("Live rating hub saturated, dropping event", map[string]interface{}{
			"store_id": event.StoreID,
			"type":     event.Type,
		})
	}
}

// Stop ends Run and disconnects every subscriber
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// SubscriberCount returns the number of live subscribers for a store
func (h *Hub) SubscriberCount(storeID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.stores[storeID])
}
