package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Pending broadcasts before Publish starts dropping events.
	broadcastBuffer = 256
)

// Client represents a single WebSocket connection watching one conversation.
type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	ConversationID uint
	UserID         uint
}

// Hub maintains the clients watching each conversation and fans out
// progress messages to them.
type Hub struct {
	Rooms      map[uint]map[*Client]bool // conversationID -> set of clients
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *ConversationMessage
	mu         sync.RWMutex
}

// ConversationMessage carries a message destined for one conversation's watchers.
type ConversationMessage struct {
	ConversationID uint
	Message        []byte
}

// NewHub creates and returns a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[uint]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *ConversationMessage, broadcastBuffer),
	}
}

// Run handles register, unregister, and broadcast events. It should be
// launched as a goroutine.
func (h *Hub) Run() {
	log := logger.Get()

	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.ConversationID] == nil {
				h.Rooms[client.ConversationID] = make(map[*Client]bool)
			}
			h.Rooms[client.ConversationID][client] = true
			h.mu.Unlock()

			log.Info("progress watcher registered",
				zap.Uint("conversation_id", client.ConversationID),
				zap.Uint("user_id", client.UserID),
			)

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

			log.Info("progress watcher unregistered",
				zap.Uint("conversation_id", client.ConversationID),
				zap.Uint("user_id", client.UserID),
			)

		case msg := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.Rooms[msg.ConversationID] {
				select {
				case client.Send <- msg.Message:
				default:
					// Client's send buffer is full; disconnect it.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client from its room. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.Rooms[client.ConversationID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.Rooms, client.ConversationID)
	}
}

// Publish queues msg for everyone watching conversationID. It never blocks and
// reports false when the event was dropped.
func (h *Hub) Publish(conversationID uint, msg []byte) bool {
	select {
	case h.Broadcast <- &ConversationMessage{ConversationID: conversationID, Message: msg}:
		return true
	default:
		logger.Get().Warn("progress broadcast buffer full, dropping event", zap.Uint("conversation_id", conversationID))
		return false
	}
}

// Watchers returns the number of clients watching conversationID.
func (h *Hub) Watchers(conversationID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Rooms[conversationID])
}

// ReadPump reads messages from the WebSocket connection until it closes. It
// is intended to be run in a per-client goroutine. The provided handler is
// called for each incoming message.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				logger.Get().Warn("unexpected websocket close",
					zap.Uint("conversation_id", c.ConversationID),
					zap.Uint("user_id", c.UserID),
					zap.Error(err),
				)
			}
			break
		}
		handler(c, message)
	}
}

// WritePump sends messages from the Send channel to the WebSocket connection.
// It also sends periodic pings to keep the connection alive. It is intended to
// be run in a per-client goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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
