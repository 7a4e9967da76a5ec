// handler.go — the transport side of the Hub: upgrading HTTP requests to
// WebSocket connections and pumping messages between the connection and the Hub.
package websocket

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Upgrade is the pre-flight middleware for websocket routes: it lets genuine
// upgrade requests through and rejects plain HTTP with 426 Upgrade Required.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve returns the websocket handler for GET /ws/lottery/:date.
// Each connection registers a client keyed by the date path parameter and then
// writes Hub broadcasts out until either side closes.
func Serve(hub *Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			Date: conn.Params("date"),
			Send: make(chan []byte, 16),
		}
		hub.Register(client)

		// Reader goroutine: we never expect inbound payloads, but reading is
		// what detects the peer closing the connection.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case data, ok := <-client.Send:
				if !ok {
					// Hub dropped us (slow consumer); close the socket.
					_ = conn.WriteMessage(websocket.CloseMessage, nil)
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.Unregister(client)
					return
				}
			case <-done:
				hub.Unregister(client)
				return
			}
		}
	})
}
