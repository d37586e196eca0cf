package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereceipt/receipt-studio/internal/command"
	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/session"
)

// WebSocket message types
const (
	EventPreviewUpdated = "preview_updated"
	EventCreditsChanged = "credits_changed"
	EventExportFinished = "export_finished"
	EventCommand        = "command"
	EventResponse       = "response"
	EventError          = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// WSClient is one connected browser tab. It receives events for its
// session and for its user.
type WSClient struct {
	conn      *websocket.Conn
	send      chan WSMessage
	hub       *Hub
	sess      *session.Session
	sessionID string
	userID    string
	once      sync.Once
}

// Hub fans bus events out to the websocket clients they concern.
type Hub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	unsubs  []func()
	logger  *slog.Logger
}

// NewHub subscribes to the bus. A nil bus gives a hub that never pushes.
func NewHub(bus *events.Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients: make(map[*WSClient]struct{}),
		logger:  logger,
	}

	h.unsubs = append(h.unsubs,
		events.Subscribe(bus, events.PreviewUpdatedTopic, func(e events.PreviewUpdated) {
			h.broadcast(func(c *WSClient) bool { return c.sessionID == e.SessionID }, WSMessage{
				Event: EventPreviewUpdated,
				Data:  map[string]interface{}{"session_id": e.SessionID, "revision": e.Revision},
			})
		}),
		events.Subscribe(bus, events.CreditsChangedTopic, func(e events.CreditsChanged) {
			h.broadcast(func(c *WSClient) bool { return c.userID != "" && c.userID == e.UserID }, WSMessage{
				Event: EventCreditsChanged,
				Data:  map[string]interface{}{"balance": e.Balance},
			})
		}),
		events.Subscribe(bus, events.ExportFinishedTopic, func(e events.ExportFinished) {
			data := map[string]interface{}{"session_id": e.SessionID, "format": e.Format}
			if e.Err != nil {
				data["error"] = toAppError(e.Err).Message
			}
			h.broadcast(func(c *WSClient) bool { return c.sessionID == e.SessionID }, WSMessage{
				Event: EventExportFinished,
				Data:  data,
			})
		}),
	)
	return h
}

func (h *Hub) add(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(match func(*WSClient) bool, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// Client send buffer full, skip
			h.logger.Warn("websocket client too slow, dropping event", "event", msg.Event, "session_id", client.sessionID)
		}
	}
}

// Close unsubscribes from the bus and disconnects every client.
func (h *Hub) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil

	h.mu.Lock()
	all := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range all {
		c.close()
	}
}

// handleWebSocket upgrades a connection scoped to one session.
func (s *Server) handleWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(400, APIResponse{Success: false, Message: "session_id is required", Meta: newMeta(c)})
		return
	}
	c.Params = append(c.Params, gin.Param{Key: "id", Value: sessionID})
	sess, ok := s.session(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan WSMessage, 64),
		hub:       s.hub,
		sess:      sess,
		sessionID: sessionID,
		userID:    c.GetString(ctxUserID),
	}
	s.hub.add(client)
	s.logger.Info("websocket client connected", "session_id", sessionID)

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		c.hub.logger.Info("websocket client disconnected", "session_id", c.sessionID)
	}()

	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventCommand:
		cmd, _ := msg.Data["command"].(string)
		if cmd == "" {
			c.reply(EventError, map[string]interface{}{"error": "command is required"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		result := command.NewExecutor(c.sess).Execute(ctx, cmd)
		c.reply(EventResponse, map[string]interface{}{
			"success": result.Success,
			"message": result.Message,
			"data":    result.Data,
			"error":   result.Error,
		})
	default:
		c.reply(EventError, map[string]interface{}{"error": fmt.Sprintf("unknown event: %s", msg.Event)})
	}
}

func (c *WSClient) reply(event string, data map[string]interface{}) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}
