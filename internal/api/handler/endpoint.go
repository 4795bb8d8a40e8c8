package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/storage"
)

// EndpointHandler handles endpoint management. The spreadsheet-to-JSON
// conversion happens upstream; this handler receives the converted records
// and stamps ids onto rows that lack one.
type EndpointHandler struct {
	store    storage.Storage
	projects *ProjectHandler
}

// NewEndpointHandler creates a new EndpointHandler.
func NewEndpointHandler(store storage.Storage) *EndpointHandler {
	return &EndpointHandler{store: store, projects: NewProjectHandler(store)}
}

// Create creates an endpoint under a project from converted spreadsheet
// data.
func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projects.ownedProject(w, r)
	if !ok {
		return
	}

	var req domain.CreateEndpointRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Data == nil {
		respondError(w, http.StatusBadRequest, "title and json_data are required")
		return
	}

	slug, err := h.uniqueSlug(r, project.ID, req.Title)
	if err != nil {
		handleError(w, err)
		return
	}

	now := time.Now().UTC()
	records := domain.StampRecords(req.Data, now)

	endpoint := &domain.Endpoint{
		ID:          generateID(),
		ProjectID:   project.ID,
		Title:       req.Title,
		Description: req.Description,
		Slug:        slug,
		FileName:    req.FileName,
		FileType:    req.FileType,
		IsActive:    true,
		RecordCount: len(records),
		Data:        records,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateEndpoint(r.Context(), endpoint); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, endpoint)
}

func (h *EndpointHandler) uniqueSlug(r *http.Request, projectID, title string) (string, error) {
	base := slugify(title)
	if base == "" {
		base = "endpoint"
	}
	slug := base
	for counter := 1; ; counter++ {
		taken, err := h.slugTaken(r, projectID, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (h *EndpointHandler) slugTaken(r *http.Request, projectID, slug string) (bool, error) {
	// Endpoint slugs only need to be unique within their project, so scan
	// the project's endpoints.
	endpoints, _, err := h.store.ListEndpoints(r.Context(), projectID, "", 1, 0)
	if err != nil {
		return false, err
	}
	for _, e := range endpoints {
		if e.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// List lists a project's endpoints with search and pagination.
func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projects.ownedProject(w, r)
	if !ok {
		return
	}

	search := r.URL.Query().Get("search")
	page, limit := listPageParams(r)

	endpoints, total, err := h.store.ListEndpoints(r.Context(), project.ID, search, page, limit)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{
		Data:       endpoints,
		Pagination: newPaginationMeta(page, limit, total),
	})
}

// Delete deletes an endpoint, owner only.
func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projects.ownedProject(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	endpoint, err := h.store.GetEndpoint(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if endpoint.ProjectID != project.ID {
		handleError(w, domain.ErrNotFound)
		return
	}

	if err := h.store.DeleteEndpoint(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
