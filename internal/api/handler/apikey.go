package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sheetserve/sheetserve/internal/api/middleware"
	"github.com/sheetserve/sheetserve/internal/auth"
	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/storage"
)

// APIKeyHandler handles API key management.
type APIKeyHandler struct {
	store storage.Storage
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(store storage.Storage) *APIKeyHandler {
	return &APIKeyHandler{store: store}
}

// Create creates a new API key. The secret is only returned here.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req domain.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	count, err := h.store.CountAPIKeys(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if count >= domain.MaxAPIKeysPerUser {
		handleError(w, domain.ErrKeyQuota)
		return
	}

	key, hash, prefix, err := auth.GenerateKey()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	now := time.Now().UTC()
	apiKey := &domain.APIKey{
		ID:        generateID(),
		UserID:    userID,
		Name:      req.Name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateAPIKey(r.Context(), apiKey); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, &domain.CreateAPIKeyResponse{
		ID:        apiKey.ID,
		Name:      apiKey.Name,
		Key:       key,
		KeyPrefix: apiKey.KeyPrefix,
		CreatedAt: apiKey.CreatedAt,
	})
}

// List lists the caller's API keys (without the secret values).
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, keys)
}

// Toggle flips the key's active flag. Deactivating is idempotent
// revocation; the key can be reactivated later.
func (h *APIKeyHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	key, ok := h.ownedKey(w, r)
	if !ok {
		return
	}

	if err := h.store.SetAPIKeyActive(r.Context(), key.ID, !key.IsActive); err != nil {
		handleError(w, err)
		return
	}
	key.IsActive = !key.IsActive
	respondJSON(w, http.StatusOK, key)
}

// Delete deletes an API key. Only the owner may delete it.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.ownedKey(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteAPIKey(r.Context(), key.ID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedKey loads the addressed key and enforces ownership. Keys of other
// users read as not found.
func (h *APIKeyHandler) ownedKey(w http.ResponseWriter, r *http.Request) (*domain.APIKey, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	keys, err := h.store.ListAPIKeys(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	for _, k := range keys {
		if k.ID == id {
			return k, true
		}
	}
	respondError(w, http.StatusNotFound, "not found")
	return nil, false
}
