package registry

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (a *API) handleCheckConflict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       uuid.UUID `json:"user_id"`
		SessionToken string    `json:"session_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	req.SessionToken = strings.TrimSpace(req.SessionToken)
	if req.SessionToken == "" {
		respondError(w, http.StatusBadRequest, errors.New("session_token is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	conflict, err := a.service.CheckConflict(ctx, req.UserID, req.SessionToken)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"conflict": conflict})
}

func (a *API) handleRegisterSession(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	req.SessionToken = strings.TrimSpace(req.SessionToken)
	if req.SessionToken == "" {
		respondError(w, http.StatusBadRequest, errors.New("session_token is required"))
		return
	}
	if req.Signals == nil {
		req.Signals = map[string]any{}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	session, err := a.service.Register(ctx, req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (a *API) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.SessionToken = strings.TrimSpace(req.SessionToken)
	if req.SessionToken == "" {
		respondError(w, http.StatusBadRequest, errors.New("session_token is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	updated, err := a.service.Heartbeat(ctx, req.SessionToken)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (a *API) handleDeactivateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"session_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.SessionToken = strings.TrimSpace(req.SessionToken)
	if req.SessionToken == "" {
		respondError(w, http.StatusBadRequest, errors.New("session_token is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	found, err := a.service.DeactivateToken(ctx, req.SessionToken)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deactivated": found})
}

func (a *API) handleKickSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid session id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	session, found, err := a.service.Kick(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("user_id")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid user_id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	sessions, err := a.service.ListForUser(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
