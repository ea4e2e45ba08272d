package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/mrsorbate/KADR.app-sub000/realtime"
	"github.com/mrsorbate/KADR.app-sub000/services"
)

type WebSocketHandler struct {
	hub      *realtime.Hub
	access   services.OccurrenceService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler принимает список разрешённых Origin; пустой список или "*" разрешает все.
func NewWebSocketHandler(hub *realtime.Hub, access services.OccurrenceService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWs подключает клиента к комнате команды: /ws/teams/{teamID}.
// Членство проверяется до апгрейда соединения.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.access.CanWatchTeam(r.Context(), actorID, teamID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Int("team_id", teamID), slog.Any("error", err))
		return
	}

	client := realtime.NewClient(h.hub, conn, teamID)
	if !h.hub.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
