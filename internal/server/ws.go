// File: internal/server/ws.go
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conductor/internal/agent"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The CORS middleware already allows any origin; the handshake must
	// match. Restrict this in hardened deployments.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MessageType identifies a stream message variant.
type MessageType string

const (
	MsgTypeUserPrompt    MessageType = "UserPrompt"
	MsgTypeAgentResponse MessageType = "AgentResponse"
	MsgTypeStatusUpdate  MessageType = "StatusUpdate"
	MsgTypeSystemError   MessageType = "SystemError"
)

// WSMessage is the envelope for both directions of the stream.
type WSMessage struct {
	Type      MessageType    `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 65536
	// Send buffer size.
	sendChannelSize = 256
)

// wsClient is one active stream connection with its message pumps.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	send   chan WSMessage
}

// handleStream upgrades the connection and runs the pumps. The read pump
// blocks until the peer goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", zap.Error(err))
		return
	}

	s.logger.Info("WebSocket connection established", zap.String("remoteAddr", r.RemoteAddr))

	client := &wsClient{
		server: s,
		conn:   conn,
		send:   make(chan WSMessage, sendChannelSize),
	}

	go client.writePump()
	client.readPump()

	s.logger.Debug("WebSocket handler finished", zap.String("remoteAddr", r.RemoteAddr))
}

// readPump pumps messages from the connection into turn processing. Keeping
// reads on a dedicated loop keeps control frames (pongs, close) responsive.
func (c *wsClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.server.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket closed unexpectedly", zap.Error(err))
			} else {
				c.server.logger.Info("WebSocket connection closed.")
			}
			break
		}

		c.processMessage(msg)
	}
}

// writePump serializes all writes to the connection and keeps it alive with
// periodic pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.server.logger.Error("Failed to set write deadline", zap.Error(err))
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Error("Error writing JSON message to WebSocket", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.server.logger.Error("Failed to set write deadline for PING", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) processMessage(msg WSMessage) {
	switch msg.Type {
	case MsgTypeUserPrompt:
		if msg.RequestID == "" {
			c.sendError(msg.RequestID, "UserPrompt message requires a request_id.")
			return
		}

		promptRaw, ok := msg.Data["prompt"]
		if !ok {
			c.sendError(msg.RequestID, "Missing 'prompt' field in UserPrompt message.")
			return
		}
		prompt, ok := promptRaw.(string)
		if !ok || strings.TrimSpace(prompt) == "" {
			c.sendError(msg.RequestID, "Invalid or empty 'prompt' provided.")
			return
		}

		sessionID, _ := msg.Data["sessionId"].(string)

		// Run the turn off the read loop so control frames keep flowing.
		go c.runTurn(msg.RequestID, sessionID, prompt)

	default:
		c.server.logger.Warn("Received unknown message type from client", zap.String("type", string(msg.Type)))
		c.sendError(msg.RequestID, "Unknown or unsupported message type: "+string(msg.Type))
	}
}

// runTurn executes one conversation turn and streams the outcome back.
func (c *wsClient) runTurn(requestID, sessionID, prompt string) {
	c.sendStatus(requestID, "Turn started.")

	resp, err := c.server.controller.HandleMessage(context.Background(), sessionID, prompt)
	if err != nil {
		c.server.logger.Error("Stream turn failed", zap.String("requestID", requestID), zap.Error(err))
		if errors.Is(err, agent.ErrMaxIterations) {
			c.sendError(requestID, "max iterations exceeded")
		} else {
			c.sendError(requestID, "reasoning service unavailable")
		}
		return
	}

	c.sendMessage(MsgTypeAgentResponse, requestID, map[string]any{
		"response": resp,
	})
}

// sendMessage queues a message for the write pump; a full buffer drops the
// message rather than blocking the turn.
func (c *wsClient) sendMessage(msgType MessageType, requestID string, data map[string]any) {
	msg := WSMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}

	select {
	case c.send <- msg:
	default:
		c.server.logger.Error("WebSocket send buffer full, dropping message.",
			zap.String("requestID", requestID), zap.String("type", string(msgType)))
	}
}

func (c *wsClient) sendError(requestID, errorMessage string) {
	c.sendMessage(MsgTypeSystemError, requestID, map[string]any{"error": errorMessage})
}

func (c *wsClient) sendStatus(requestID, statusMessage string) {
	c.sendMessage(MsgTypeStatusUpdate, requestID, map[string]any{"status": statusMessage})
}
