package handlers

import (
	"net/http"
	"net/url"
	"slices"

	"chat-realtime/internal/auth"
	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	ws "chat-realtime/internal/websocket"
	"chat-realtime/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	engine      *ws.Engine
	router      ws.EventHandler
	queueSize   int
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader
}

// NewWebSocketHandlers accepts any origin when allowedOrigins is empty.
func NewWebSocketHandlers(authService *auth.Service, engine *ws.Engine, router ws.EventHandler, allowedOrigins []string, queueSize int, m *metrics.Metrics) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		engine:      engine,
		router:      router,
		queueSize:   queueSize,
		metrics:     m,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, origin) || slices.Contains(allowed, u.Host)
	}
}

// HandleWebSocket serves /ws?token=. The token proves the session; the
// connection still has to send join_user before it can join channels.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := auth.TokenFromRequest(r)
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", models.HTTPStatus(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(conn, user, h.queueSize, h.metrics)
	connID := h.engine.Register(client)
	logger.Info("User %s connected as %s (%s)", user.Username, connID, h.engine.Describe())

	go client.WritePump()
	go client.ReadPump(h.router, func() {
		h.engine.Unregister(connID)
	})
}
