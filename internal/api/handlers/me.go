package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"latebird/internal/core"
	"latebird/internal/types"
)

// MeHandler serves the authenticated user's profile from the credential store.
type MeHandler struct {
	creds  PostCredRepo
	logger *slog.Logger
}

// NewMeHandler creates a MeHandler.
func NewMeHandler(creds PostCredRepo, logger *slog.Logger) *MeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeHandler{creds: creds, logger: logger}
}

// RegisterRoutes mounts the profile route on the authenticated API group.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.HandleMe)
}

// HandleMe serves GET /api/me.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	cred, err := h.creds.GetByUserID(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalDB, "failed to load profile", err))
		return
	}
	if cred == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthNoCredentials, "no stored credentials", nil))
		return
	}

	core.Success(w, r, http.StatusOK, core.Envelope{
		"user": core.Envelope{
			"id":          cred.UserID,
			"handle":      cred.Handle,
			"displayName": cred.DisplayName,
			"avatarUrl":   cred.AvatarURL,
		},
	})
}
