// Command mockbackend is a stand-in chat backend for local testing. It
// relays every envelope it receives unchanged to all connected bridges and
// answers "!ping" with a notice.
package main

import (
	"flag"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/omochice/toy-irc-bridge/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for simplicity
	},
}

type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]*sync.Mutex
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = &sync.Mutex{}
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (h *hub) broadcast(msg protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		log.Printf("Failed to encode message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, wmu := range h.conns {
		wmu.Lock()
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			log.Printf("Failed to send message: %v", err)
		}
		wmu.Unlock()
	}
}

func (h *hub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	h.add(conn)
	defer h.remove(conn)
	log.Printf("Bridge connected from %s", conn.RemoteAddr())

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		var msg protocol.Message
		if err := msg.Decode(data); err != nil {
			log.Printf("Failed to decode message: %v", err)
			continue
		}
		log.Printf("[%s] %s %s: %s", msg.Room, msg.Kind, msg.Sender, msg.Body)

		// bridges drop their own transaction ids as echoes
		h.broadcast(msg)
		if msg.Body == "!ping" {
			h.broadcast(protocol.Message{
				Kind:   protocol.KindNotice,
				Room:   msg.Room,
				Sender: "mockbackend",
				Body:   "pong",
				TxnID:  uuid.NewString(),
			})
		}
	}
}

func main() {
	addr := flag.String("addr", ":8081", "Address to listen on")
	flag.Parse()

	h := &hub{conns: make(map[*websocket.Conn]*sync.Mutex)}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handle)

	log.Printf("Mock backend listening on %s (ws://<host>%s/ws)", *addr, *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
