package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sheetserve/sheetserve/internal/auth"
	"github.com/sheetserve/sheetserve/internal/calllog"
	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/query"
	"github.com/sheetserve/sheetserve/internal/quota"
	"github.com/sheetserve/sheetserve/internal/storage"
	"github.com/sirupsen/logrus"
)

// DataHandler serves the public data API: the generated REST resource at
// /api/projects/{projectSlug}/endpoints/{endpointSlug}.
//
// Mutations read the whole collection, change it in memory and write the
// whole collection back. Two concurrent mutations of the same endpoint can
// therefore race and the second write wins; quota increments, in contrast,
// are atomic.
type DataHandler struct {
	store storage.Storage
	authn *auth.Authenticator
	calls *calllog.Logger
	log   *logrus.Logger
}

// NewDataHandler creates a DataHandler.
func NewDataHandler(store storage.Storage, authn *auth.Authenticator, calls *calllog.Logger, log *logrus.Logger) *DataHandler {
	return &DataHandler{store: store, authn: authn, calls: calls, log: log}
}

// setCORS marks the response for cross-origin browser clients. Every data
// API response carries these, success or failure.
func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, x-api-key")
}

func setRateLimitHeaders(h http.Header, info *quota.Info) {
	if info == nil {
		return
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	h.Set("X-RateLimit-Reset", info.Reset.UTC().Format(time.RFC3339))
}

// respondData writes a data API response with CORS headers.
func respondData(w http.ResponseWriter, status int, v any) {
	setCORS(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func respondDataError(w http.ResponseWriter, status int, message string) {
	respondData(w, status, &domain.DataAPIError{Error: message})
}

// Response envelopes of the data API.

type endpointMeta struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Slug        string     `json:"slug"`
	RecordCount int        `json:"recordCount,omitempty"`
	FileType    string     `json:"fileType,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type projectMeta struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type queryEcho struct {
	Search    string `json:"search"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
}

type resourceMeta struct {
	Endpoint endpointMeta `json:"endpoint"`
	Project  projectMeta  `json:"project"`
	Query    *queryEcho   `json:"query,omitempty"`
}

type singleResponse struct {
	Data domain.Record `json:"data"`
	Meta resourceMeta  `json:"meta"`
}

type listDataResponse struct {
	Data       []domain.Record `json:"data"`
	Pagination query.Page      `json:"pagination"`
	Meta       resourceMeta    `json:"meta"`
}

type mutationResponse struct {
	Data    domain.Record `json:"data"`
	Message string        `json:"message"`
}

type deleteResponse struct {
	Message         string        `json:"message"`
	DeletedResource domain.Record `json:"deletedResource"`
}

func singleMeta(e *domain.Endpoint) resourceMeta {
	return resourceMeta{
		Endpoint: endpointMeta{Title: e.Title, Description: e.Description, Slug: e.Slug},
		Project:  projectMeta{Title: e.Project.Title, Slug: e.Project.Slug},
	}
}

func listMeta(e *domain.Endpoint, p query.Params) resourceMeta {
	updated := e.UpdatedAt
	return resourceMeta{
		Endpoint: endpointMeta{
			Title:       e.Title,
			Description: e.Description,
			Slug:        e.Slug,
			RecordCount: e.RecordCount,
			FileType:    e.FileType,
			UpdatedAt:   &updated,
		},
		Project: projectMeta{Title: e.Project.Title, Slug: e.Project.Slug},
		Query: &queryEcho{
			Search:    p.Search,
			SortBy:    p.SortBy,
			SortOrder: p.SortOrder,
			Page:      p.Page,
			Limit:     p.Limit,
		},
	}
}

// resolve loads the target endpoint and applies the protection policy.
// On failure it writes the response (including the call log attempt when
// the endpoint exists) and returns ok=false.
func (h *DataHandler) resolve(w http.ResponseWriter, r *http.Request, method string, start time.Time) (*domain.Endpoint, auth.Decision, bool) {
	projectSlug := chi.URLParam(r, "projectSlug")
	endpointSlug := chi.URLParam(r, "endpointSlug")

	endpoint, err := h.store.GetEndpointBySlugs(r.Context(), projectSlug, endpointSlug)
	if err == domain.ErrNotFound {
		respondDataError(w, http.StatusNotFound, "Endpoint not found")
		return nil, auth.Decision{}, false
	}
	if err != nil {
		h.log.WithError(err).Error("endpoint lookup failed")
		respondDataError(w, http.StatusInternalServerError, "Internal server error")
		return nil, auth.Decision{}, false
	}

	decision, err := h.authn.Authenticate(r.Context(), r.Header.Get("x-api-key"), endpoint.Project.APIProtection, method)
	if err != nil {
		h.log.WithError(err).Error("authentication failed")
		respondDataError(w, http.StatusInternalServerError, "Internal server error")
		h.logCall(endpoint, r, decision, http.StatusInternalServerError, start, nil)
		return nil, auth.Decision{}, false
	}
	if !decision.Allowed {
		setRateLimitHeaders(w.Header(), decision.Quota)
		respondDataError(w, decision.Status, decision.Reason)
		h.logCall(endpoint, r, decision, decision.Status, start, nil)
		return nil, auth.Decision{}, false
	}

	return endpoint, decision, true
}

// logCall queues the audit entry for this request, best-effort.
func (h *DataHandler) logCall(e *domain.Endpoint, r *http.Request, d auth.Decision, status int, start time.Time, snapshot any) {
	queryJSON, _ := json.Marshal(flattenValues(r.URL.Query()))
	headerJSON, _ := json.Marshal(flattenValues(r.Header))
	var response string
	if snapshot != nil {
		if b, err := json.Marshal(snapshot); err == nil {
			response = string(b)
		}
	}

	call := domain.APICall{
		EndpointID: e.ID,
		Method:     r.Method,
		Path:       r.URL.RequestURI(),
		Query:      string(queryJSON),
		Headers:    string(headerJSON),
		StatusCode: status,
		DurationMS: time.Since(start).Milliseconds(),
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
		Response:   response,
	}
	if d.Key != nil {
		call.APIKeyID = d.Key.ID
	}
	h.calls.Record(call)
}

func flattenValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = strings.Join(v, ",")
	}
	return out
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

// Get serves collection listings and single-resource reads.
func (h *DataHandler) Get(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint, decision, ok := h.resolve(w, r, http.MethodGet, start)
	if !ok {
		return
	}
	setRateLimitHeaders(w.Header(), decision.Quota)

	params := query.Parse(r.URL.Query())

	// Single-resource mode: no pagination, no caching.
	if params.ID != "" {
		record, found := query.FindByID(endpoint.Data, params.ID)
		if !found {
			respondDataError(w, http.StatusNotFound, "Resource not found")
			h.logCall(endpoint, r, decision, http.StatusNotFound, start, nil)
			return
		}
		respondData(w, http.StatusOK, singleResponse{Data: record, Meta: singleMeta(endpoint)})
		h.logCall(endpoint, r, decision, http.StatusOK, start, record)
		return
	}

	data, page := query.Apply(endpoint.Data, params)
	if data == nil {
		data = []domain.Record{}
	}

	// Listings are cacheable; single-record reads are not.
	w.Header().Set("Cache-Control", "public, max-age=300")
	respondData(w, http.StatusOK, listDataResponse{
		Data:       data,
		Pagination: page,
		Meta:       listMeta(endpoint, params),
	})
	h.logCall(endpoint, r, decision, http.StatusOK, start, nil)
}

// Create appends one record to the collection.
func (h *DataHandler) Create(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint, decision, ok := h.resolve(w, r, http.MethodPost, start)
	if !ok {
		return
	}
	setRateLimitHeaders(w.Header(), decision.Quota)

	var body domain.Record
	if err := decodeJSON(r, &body); err != nil {
		respondDataError(w, http.StatusBadRequest, "Invalid JSON body")
		h.logCall(endpoint, r, decision, http.StatusBadRequest, start, nil)
		return
	}

	// The server owns id and timestamps; NewRecord discards caller values
	// for the reserved keys.
	record := domain.NewRecord(body, time.Now())
	updated := append(endpoint.Data, record)

	if err := h.store.ReplaceEndpointData(r.Context(), endpoint.ID, updated); err != nil {
		h.log.WithError(err).Error("failed to persist created resource")
		respondDataError(w, http.StatusInternalServerError, "Internal server error")
		h.logCall(endpoint, r, decision, http.StatusInternalServerError, start, nil)
		return
	}

	respondData(w, http.StatusCreated, mutationResponse{
		Data:    record,
		Message: "Resource created successfully",
	})
	h.logCall(endpoint, r, decision, http.StatusCreated, start, record)
}

// Update shallow-merges the request body over the addressed record.
func (h *DataHandler) Update(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint, decision, ok := h.resolve(w, r, http.MethodPatch, start)
	if !ok {
		return
	}
	setRateLimitHeaders(w.Header(), decision.Quota)

	id := r.URL.Query().Get("id")
	if id == "" {
		respondDataError(w, http.StatusBadRequest, "Resource ID is required")
		h.logCall(endpoint, r, decision, http.StatusBadRequest, start, nil)
		return
	}

	var body domain.Record
	if err := decodeJSON(r, &body); err != nil {
		respondDataError(w, http.StatusBadRequest, "Invalid JSON body")
		h.logCall(endpoint, r, decision, http.StatusBadRequest, start, nil)
		return
	}

	index := -1
	for i, rec := range endpoint.Data {
		if rec.ID() == id {
			index = i
			break
		}
	}
	if index == -1 {
		respondDataError(w, http.StatusNotFound, "Resource not found")
		h.logCall(endpoint, r, decision, http.StatusNotFound, start, nil)
		return
	}

	merged := endpoint.Data[index].Merge(body, time.Now())
	endpoint.Data[index] = merged

	if err := h.store.ReplaceEndpointData(r.Context(), endpoint.ID, endpoint.Data); err != nil {
		h.log.WithError(err).Error("failed to persist updated resource")
		respondDataError(w, http.StatusInternalServerError, "Internal server error")
		h.logCall(endpoint, r, decision, http.StatusInternalServerError, start, nil)
		return
	}

	respondData(w, http.StatusOK, mutationResponse{
		Data:    merged,
		Message: "Resource updated successfully",
	})
	h.logCall(endpoint, r, decision, http.StatusOK, start, merged)
}

// Delete removes the addressed record and returns it for confirmation.
func (h *DataHandler) Delete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	endpoint, decision, ok := h.resolve(w, r, http.MethodDelete, start)
	if !ok {
		return
	}
	setRateLimitHeaders(w.Header(), decision.Quota)

	id := r.URL.Query().Get("id")
	if id == "" {
		respondDataError(w, http.StatusBadRequest, "Resource ID is required")
		h.logCall(endpoint, r, decision, http.StatusBadRequest, start, nil)
		return
	}

	index := -1
	for i, rec := range endpoint.Data {
		if rec.ID() == id {
			index = i
			break
		}
	}
	if index == -1 {
		respondDataError(w, http.StatusNotFound, "Resource not found")
		h.logCall(endpoint, r, decision, http.StatusNotFound, start, nil)
		return
	}

	deleted := endpoint.Data[index]
	updated := append(endpoint.Data[:index], endpoint.Data[index+1:]...)

	if err := h.store.ReplaceEndpointData(r.Context(), endpoint.ID, updated); err != nil {
		h.log.WithError(err).Error("failed to persist resource deletion")
		respondDataError(w, http.StatusInternalServerError, "Internal server error")
		h.logCall(endpoint, r, decision, http.StatusInternalServerError, start, nil)
		return
	}

	respondData(w, http.StatusOK, deleteResponse{
		Message:         "Resource deleted successfully",
		DeletedResource: deleted,
	})
	h.logCall(endpoint, r, decision, http.StatusOK, start, nil)
}

// Preflight answers CORS preflight requests. No authentication: browsers
// send these before the key header is attached.
func (h *DataHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusOK)
}
