package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/technosupport/ts-signal/internal/broker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for dev; restrict in prod
	},
}

// WSHandler upgrades clients and runs their read loops. Everything after the
// upgrade — auth deadline, dispatch, cleanup — belongs to the broker.
type WSHandler struct {
	Broker *broker.Broker
}

func NewWSHandler(b *broker.Broker) *WSHandler {
	return &WSHandler{Broker: b}
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS Upgrade Failed: %v", err)
		return
	}
	defer conn.Close()

	c := h.Broker.Connect(conn)
	defer h.Broker.Disconnect(c)

	// One sequential read loop per connection: frames are handled in the
	// order received, which WebRTC negotiation depends on.
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WS Read Error: %v", err)
			}
			return
		}
		h.Broker.HandleMessage(c, msg)
	}
}
