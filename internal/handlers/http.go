package handlers

import (
	"encoding/json"
	"net/http"

	"chat-realtime/internal/auth"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := models.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	writeJSON(w, status, models.ErrorPayload{
		Code:    models.ErrorCode(err),
		Message: err.Error(),
	})
}

// userFromRequest authenticates the request by its session token.
func userFromRequest(authService *auth.Service, r *http.Request) (*models.User, error) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		return nil, models.ErrUnauthenticated
	}
	return authService.GetUserFromToken(r.Context(), token)
}

// RegisterRoutes mounts the websocket endpoint and the query surface on mux.
func RegisterRoutes(mux *http.ServeMux, wsHandlers *WebSocketHandlers, notificationHandlers *NotificationHandlers, reactionHandlers *ReactionHandlers) {
	mux.HandleFunc("GET /ws", wsHandlers.HandleWebSocket)
	mux.HandleFunc("GET /notifications/unread", notificationHandlers.Unread)
	mux.HandleFunc("POST /notifications/read", notificationHandlers.MarkRead)
	mux.HandleFunc("GET /messages/{id}/reactions", reactionHandlers.Details)
}
