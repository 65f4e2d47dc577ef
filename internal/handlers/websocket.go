package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string      `json:"type"`
	Address string      `json:"address,omitempty"`
	Data    interface{} `json:"data"`
}

type Client struct {
	Address string
	Conn    *websocket.Conn
	send    chan *Message
}

// WebSocketHub fans ledger updates out to the connections subscribed to an
// address. All map access happens on the Run goroutine.
type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		done:       make(chan struct{}),
	}
}

func (hub *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(hub.done)
			for _, set := range hub.clients {
				for client := range set {
					close(client.send)
				}
			}
			hub.clients = make(map[string]map[*Client]struct{})
			return

		case client := <-hub.register:
			set, ok := hub.clients[client.Address]
			if !ok {
				set = make(map[*Client]struct{})
				hub.clients[client.Address] = set
			}
			set[client] = struct{}{}
			log.Printf("Client registered: %s", client.Address)

		case client := <-hub.unregister:
			if set, ok := hub.clients[client.Address]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					log.Printf("Client unregistered: %s", client.Address)
				}
				if len(set) == 0 {
					delete(hub.clients, client.Address)
				}
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	set := hub.clients[message.Address]
	for client := range set {
		select {
		case client.send <- message:
		default:
			// slow consumer
			delete(set, client)
			close(client.send)
		}
	}
	if set != nil && len(set) == 0 {
		delete(hub.clients, message.Address)
	}
}

func (hub *WebSocketHub) publish(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		log.Printf("websocket broadcast queue full, dropping %s for %s", msg.Type, msg.Address)
	}
}

func (hub *WebSocketHub) BroadcastBalance(address string, summary models.LedgerSummary) {
	hub.publish(&Message{
		Type:    "BALANCE_UPDATE",
		Address: address,
		Data:    summary,
	})
}

func (hub *WebSocketHub) BroadcastBet(address string, bet models.BetRecord) {
	hub.publish(&Message{
		Type:    "BET_SETTLED",
		Address: address,
		Data:    bet,
	})
}

type WebSocketHandler struct {
	ledger *services.Ledger
	hub    *WebSocketHub
}

func NewWebSocketHandler(ledger *services.Ledger, hub *WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{ledger: ledger, hub: hub}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	address, err := models.NormalizeAddress(c.Query("address"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		Address: address,
		Conn:    conn,
		send:    make(chan *Message, clientSendSize),
	}
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()

	if ledger, err := h.ledger.Get(c.Request.Context(), address); err == nil {
		h.hub.BroadcastBalance(address, ledger.Summary())
	} else {
		log.Printf("Failed to get ledger for WS: %v", err)
	}

	h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *Client) {
	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		err := client.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if msg.Type == "PING" {
			h.hub.publish(&Message{
				Type:    "PONG",
				Address: client.Address,
				Data:    gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
