// Package websocket implements a Hub for pushing lottery run results in real time.
// WebSockets are persistent two-way connections, so the server can notify staff
// watching the tee sheet the moment a run for their date completes — no polling.
package websocket

import "sync"

// Client represents a single connected WebSocket client.
// Each staff screen watching a lottery date has one Client instance on the server.
type Client struct {
	Date string      // Which lottery date this client is watching ("2006-01-02")
	Send chan []byte // Buffered channel of outgoing messages; the Hub writes here, the connection drains it
}

// Message is a unit of data to broadcast to all clients watching a date.
type Message struct {
	Date string // The lottery date the message belongs to
	Data []byte // Raw bytes to send (JSON-encoded run summary)
}

// Hub manages all active WebSocket connections, grouped by lottery date.
// It runs in its own goroutine and processes registration, unregistration, and
// broadcast events through channels — all map writes stay on one goroutine,
// which avoids data races.
type Hub struct {
	// clients is a nested map: date -> set of Client pointers.
	// map[*Client]bool as a "set" is the usual Go idiom.
	clients map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client

	// mu protects clients for the read in broadcast delivery while the main
	// loop mutates it. RWMutex: many readers or one writer.
	mu sync.RWMutex
}

// NewHub creates an initialized Hub. The broadcast channel is buffered so a
// completing lottery run never blocks on slow websocket consumers; register
// and unregister stay unbuffered because those must complete synchronously.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the Hub's main event loop; call it in a goroutine ("go hub.Run()").
func (h *Hub) Run() {
	for {
		select {

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Date] == nil {
				h.clients[client.Date] = make(map[*Client]bool)
			}
			h.clients[client.Date][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Date]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send) // Signals the connection's writer goroutine to stop
					if len(clients) == 0 {
						delete(h.clients, client.Date) // No leak of empty date buckets
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := h.clients[msg.Date]
			h.mu.RUnlock()

			for client := range clients {
				select {
				case client.Send <- msg.Data:
				// A full buffer means the client is too slow — drop it rather
				// than blocking the broadcast loop for everyone else.
				default:
					h.unregister <- client
				}
			}
		}
	}
}

// BroadcastToDate sends data to every client watching the given lottery date.
// Handlers call this after a run completes.
func (h *Hub) BroadcastToDate(date string, data []byte) {
	h.broadcast <- &Message{Date: date, Data: data}
}

// Register adds a client so it starts receiving broadcasts for its date.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client when its connection closes.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
