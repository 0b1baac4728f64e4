package handlers

import (
	"net/http"

	"chat-realtime/internal/auth"
	"chat-realtime/internal/services"
)

type ReactionHandlers struct {
	authService *auth.Service
	reactions   *services.ReactionService
}

func NewReactionHandlers(authService *auth.Service, reactions *services.ReactionService) *ReactionHandlers {
	return &ReactionHandlers{
		authService: authService,
		reactions:   reactions,
	}
}

// Details serves GET /messages/{id}/reactions.
func (h *ReactionHandlers) Details(w http.ResponseWriter, r *http.Request) {
	user, err := userFromRequest(h.authService, r)
	if err != nil {
		writeError(w, err)
		return
	}

	details, err := h.reactions.DetailsOf(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message_id": r.PathValue("id"),
		"reactions":  details,
	})
}
