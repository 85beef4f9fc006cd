package monitor

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades incoming HTTP requests to WebSocket connections and
// registers them with a Hub. It does not read client messages beyond
// keeping the connection alive: the dashboard is receive-only.
type Handler struct {
	hub *Hub
}

// NewHandler returns a Handler serving connections for hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: websocket upgrade error: %v", err)
		return
	}

	client := &Client{hub: h.hub, conn: conn, send: make(chan []byte, 256)}
	h.hub.Register(client)
	go client.writePump()

	h.readPump(client)
}

// readPump blocks until the client disconnects, discarding any inbound
// messages (the dashboard only consumes broadcasts).
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("monitor: websocket read error: %v", err)
			}
			return
		}
	}
}
