package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sheetserve/sheetserve/internal/api/middleware"
	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/query"
	"github.com/sheetserve/sheetserve/internal/storage"
)

// ProjectHandler handles project management.
type ProjectHandler struct {
	store storage.Storage
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(store storage.Storage) *ProjectHandler {
	return &ProjectHandler{store: store}
}

// Create creates a new project. The slug is derived from the title and
// uniquified with a numeric suffix on collisions.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req domain.CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	slug, err := h.uniqueSlug(r, req.Title)
	if err != nil {
		handleError(w, err)
		return
	}

	now := time.Now().UTC()
	project := &domain.Project{
		ID:          generateID(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Slug:        slug,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateProject(r.Context(), project); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) uniqueSlug(r *http.Request, title string) (string, error) {
	base := slugify(title)
	if base == "" {
		base = "project"
	}
	slug := base
	for counter := 1; ; counter++ {
		_, err := h.store.GetProjectBySlug(r.Context(), "", slug)
		if err == domain.ErrNotFound {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

// List lists the caller's projects with search and pagination.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	search := r.URL.Query().Get("search")
	page, limit := listPageParams(r)

	projects, total, err := h.store.ListProjects(r.Context(), userID, search, page, limit)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{
		Data:       projects,
		Pagination: newPaginationMeta(page, limit, total),
	})
}

// Get fetches one project by slug, owner only.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// Delete deletes a project and its endpoints.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteProject(r.Context(), project.ID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleProtection flips the project's API protection. While on, every
// request to the project's endpoints needs a valid API key.
func (h *ProjectHandler) ToggleProtection(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	project.APIProtection = !project.APIProtection
	project.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateProject(r.Context(), project); err != nil {
		handleError(w, err)
		return
	}

	message := "API protection disabled"
	if project.APIProtection {
		message = "API protection enabled"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"project": project,
		"message": message,
	})
}

// ownedProject loads the addressed project and enforces ownership.
func (h *ProjectHandler) ownedProject(w http.ResponseWriter, r *http.Request) (*domain.Project, bool) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		respondError(w, http.StatusBadRequest, "slug is required")
		return nil, false
	}

	project, err := h.store.GetProjectBySlug(r.Context(), middleware.GetUserID(r.Context()), slug)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return project, true
}

// listPageParams reads management listing pagination with the UI defaults.
func listPageParams(r *http.Request) (page, limit int) {
	page, limit = 1, query.DefaultListPageSize
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	if limit > query.MaxPageSize {
		limit = query.MaxPageSize
	}
	return page, limit
}
