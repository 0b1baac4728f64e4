package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"chat-realtime/internal/auth"
	"chat-realtime/internal/services"
)

type NotificationHandlers struct {
	authService   *auth.Service
	notifications *services.NotificationService
}

func NewNotificationHandlers(authService *auth.Service, notifications *services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{
		authService:   authService,
		notifications: notifications,
	}
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// Unread serves GET /notifications/unread?limit=N.
func (h *NotificationHandlers) Unread(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(h.authService, r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	list, err := h.notifications.Unread(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkRead serves POST /notifications/read.
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(h.authService, r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.notifications.MarkRead(r.Context(), req.IDs, user.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
