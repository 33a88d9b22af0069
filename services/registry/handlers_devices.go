package registry

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func (a *API) handleCheckDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Fingerprint = strings.TrimSpace(req.Fingerprint)
	if req.Fingerprint == "" {
		respondError(w, http.StatusBadRequest, errors.New("fingerprint is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	reg, err := a.service.DeviceOwner(ctx, req.Fingerprint)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"registration": reg})
}

func (a *API) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint string    `json:"fingerprint"`
		UserID      uuid.UUID `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Fingerprint = strings.TrimSpace(req.Fingerprint)
	if req.Fingerprint == "" {
		respondError(w, http.StatusBadRequest, errors.New("fingerprint is required"))
		return
	}
	if req.UserID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	reg, err := a.service.RegisterDevice(ctx, req.Fingerprint, req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"registration": reg})
}
