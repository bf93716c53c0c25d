package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"github.com/windoze95/saltybytes-resolver/internal/middleware"
	"github.com/windoze95/saltybytes-resolver/internal/repository"
	"github.com/windoze95/saltybytes-resolver/internal/service"
	"go.uber.org/zap"
)

// WebSocket message types for the progress stream.
const (
	MsgTypeConnected = "connected" // Connection confirmed
	MsgTypeProgress  = "progress"  // Resolution state change
)

// WSMessage is the envelope for all messages sent over the progress WebSocket.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ConnectedPayload confirms a successful connection.
type ConnectedPayload struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

// encode wraps payload in a WSMessage envelope.
func encode(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: raw})
}

// conversationNotifier publishes progress events to one conversation's watchers.
type conversationNotifier struct {
	hub            *Hub
	conversationID uint
}

// Notify implements service.ProgressNotifier.
func (n conversationNotifier) Notify(event service.ProgressEvent) {
	msg, err := encode(MsgTypeProgress, event)
	if err != nil {
		logger.Get().Error("failed to encode progress event", zap.Error(err))
		return
	}
	n.hub.Publish(n.conversationID, msg)
}

// NotifierFor returns a ProgressNotifier streaming to conversationID's watchers.
func (h *Hub) NotifierFor(conversationID uint) service.ProgressNotifier {
	return conversationNotifier{hub: h, conversationID: conversationID}
}

// ProgressHandler upgrades requests to progress stream WebSockets.
type ProgressHandler struct {
	Hub           *Hub
	JwtSecret     string
	Conversations repository.ConversationRepo
}

// NewProgressHandler returns a new ProgressHandler.
func NewProgressHandler(hub *Hub, jwtSecret string, conversations repository.ConversationRepo) *ProgressHandler {
	return &ProgressHandler{
		Hub:           hub,
		JwtSecret:     jwtSecret,
		Conversations: conversations,
	}
}

// upgrader is configured for progress stream WebSocket upgrades.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		switch origin {
		case "", // non-browser clients
			"https://saltybytes.ai",
			"https://www.saltybytes.ai",
			"https://api.saltybytes.ai":
			return true
		}
		// Allow localhost for development
		if strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost" {
			return true
		}
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleProgress upgrades an HTTP request to a WebSocket that streams the
// progress of recipe resolutions running on a conversation. Authentication is
// done via a "token" query parameter because WebSocket connections cannot
// easily use Authorization headers.
func (ph *ProgressHandler) HandleProgress(c *gin.Context) {
	log := logger.FromGin(c)

	conversationID, err := strconv.ParseUint(c.Param("conversation_id"), 10, 64)
	if err != nil || conversationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid conversation ID"})
		return
	}

	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "token query parameter is required"})
		return
	}
	userID, err := middleware.ParseAccessToken(ph.JwtSecret, tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}

	// Only the conversation's owner may watch it
	if _, err := ph.Conversations.GetConversationByID(c.Request.Context(), uint(conversationID), userID); err != nil {
		var nf repository.NotFoundError
		if errors.As(err, &nf) {
			c.JSON(http.StatusNotFound, gin.H{"message": nf.Error()})
			return
		}
		log.Error("failed to load conversation for progress stream", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "database unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed",
			zap.Uint64("conversation_id", conversationID),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		Hub:            ph.Hub,
		Conn:           conn,
		Send:           make(chan []byte, 64),
		ConversationID: uint(conversationID),
		UserID:         userID,
	}
	ph.Hub.Register <- client

	if msg, err := encode(MsgTypeConnected, ConnectedPayload{ConversationID: client.ConversationID, UserID: userID}); err == nil {
		client.Send <- msg
	}

	go client.WritePump()
	go client.ReadPump(ph.handleMessage)
}

// handleMessage ignores client messages; the stream is server to client only.
func (ph *ProgressHandler) handleMessage(client *Client, data []byte) {
	logger.Get().Debug("ignoring message on progress stream",
		zap.Uint("conversation_id", client.ConversationID),
		zap.Uint("user_id", client.UserID),
		zap.Int("bytes", len(data)),
	)
}
