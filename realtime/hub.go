// Package realtime pushes team events to connected websocket clients. Every team has its
// own room; clients join the room of the team they are watching.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	TeamID   int
	IsClosed bool
	Mu       sync.Mutex
}

type Message struct {
	Type    string      `json:"type"` // OCCURRENCES_CHANGED, FIXTURES_IMPORTED
	Payload interface{} `json:"payload"`
	TeamID  int         `json:"team_id"`
	SentAt  time.Time   `json:"sent_at"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[int]map[*Client]bool
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[int]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// NewClient wraps an upgraded connection for the room of teamID.
func NewClient(h *Hub, conn *websocket.Conn, teamID int) *Client {
	return &Client{
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		TeamID: teamID,
	}
}

// Join registers c; false means the hub is already stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Run serves registrations until ctx is done; then every remaining client is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.TeamID]; !ok {
				h.rooms[client.TeamID] = make(map[*Client]bool)
			}
			h.rooms[client.TeamID][client] = true
			h.logger.Debug("websocket client registered",
				slog.Int("team_id", client.TeamID),
				slog.Int("clients", len(h.rooms[client.TeamID])),
			)
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.TeamID]; ok {
				if _, okClient := room[client]; okClient {
					client.close()
					delete(room, client)
					if len(room) == 0 {
						delete(h.rooms, client.TeamID)
					}
					h.logger.Debug("websocket client unregistered",
						slog.Int("team_id", client.TeamID),
						slog.Int("clients", len(room)),
					)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for teamID, room := range h.rooms {
		for client := range room {
			client.close()
		}
		delete(h.rooms, teamID)
	}
}

// ClientCount returns the number of clients watching teamID.
func (h *Hub) ClientCount(teamID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[teamID])
}

// BroadcastToTeam отправляет событие всем клиентам комнаты команды.
// Clients with a full send buffer miss the event.
func (h *Hub) BroadcastToTeam(teamID int, eventType string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[teamID]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(Message{Type: eventType, Payload: payload, TeamID: teamID, SentAt: time.Now().UTC()})
	if err != nil {
		h.logger.Error("marshalling websocket message failed",
			slog.Int("team_id", teamID),
			slog.String("type", eventType),
			slog.Any("error", err),
		)
		return
	}

	for client := range room {
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("websocket send buffer full, dropping event", slog.Int("team_id", teamID), slog.String("type", eventType))
		}
		client.Mu.Unlock()
	}
}

func (c *Client) close() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if !c.IsClosed {
		close(c.Send)
		c.IsClosed = true
	}
}

// ReadPump drains the connection so control frames are handled. Clients do not send commands.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done: // хаб уже остановлен
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket closed unexpectedly", slog.Int("team_id", c.TeamID), slog.Any("error", err))
			}
			return
		}
	}
}

// WritePump sends queued events, one frame per event, and pings the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("websocket write failed", slog.Int("team_id", c.TeamID), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
