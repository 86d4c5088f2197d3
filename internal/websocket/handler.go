package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs handles websocket requests from the peer. The channel is the
// conversation's stable delivery channel name, already resolved through the
// rekey registry by the caller.
func ServeWs(hub *Hub, c *websocket.Conn, channel string) {
	client := &Client{Hub: hub, Conn: c, Channel: channel, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
