package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/sheetserve/sheetserve/internal/api/middleware"
	"github.com/sheetserve/sheetserve/internal/quota"
	"github.com/sheetserve/sheetserve/internal/storage"
)

// UsageHandler reports quota consumption and call analytics.
type UsageHandler struct {
	store  storage.Storage
	quota  quota.Store
	policy quota.Policy
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(store storage.Storage, quotaStore quota.Store, policy quota.Policy) *UsageHandler {
	return &UsageHandler{store: store, quota: quotaStore, policy: policy}
}

type methodUsage struct {
	Method    string `json:"method"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

type keyUsage struct {
	APIKeyID  string        `json:"api_key_id"`
	Name      string        `json:"name"`
	KeyPrefix string        `json:"key_prefix"`
	Methods   []methodUsage `json:"methods"`
}

type usageResponse struct {
	ResetDate time.Time  `json:"resetDate"`
	Keys      []keyUsage `json:"keys"`
}

// Usage returns today's per-method consumption for each of the caller's
// keys. The limits come from the same policy the authenticator enforces.
func (h *UsageHandler) Usage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	keys, err := h.store.ListAPIKeys(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	now := time.Now()
	day := quota.Day(now)
	resp := usageResponse{
		ResetDate: quota.NextReset(now),
		Keys:      []keyUsage{},
	}

	for _, key := range keys {
		usage := keyUsage{
			APIKeyID:  key.ID,
			Name:      key.Name,
			KeyPrefix: key.KeyPrefix,
		}
		for _, method := range h.policy.Methods() {
			used, err := h.quota.Count(r.Context(), key.ID, method, day)
			if err != nil {
				handleError(w, err)
				return
			}
			limit := h.policy.Limit(method)
			remaining := limit - used
			if remaining < 0 {
				remaining = 0
			}
			usage.Methods = append(usage.Methods, methodUsage{
				Method:    method,
				Limit:     limit,
				Used:      used,
				Remaining: remaining,
			})
		}
		resp.Keys = append(resp.Keys, usage)
	}

	respondJSON(w, http.StatusOK, resp)
}

type analyticsOverview struct {
	Period        string          `json:"period"`
	TotalCalls    int             `json:"totalCalls"`
	CallsByMethod map[string]int  `json:"callsByMethod"`
	ErrorCalls    int             `json:"errorCalls"`
	ErrorRate     float64         `json:"errorRate"`
	Duration      durationMetrics `json:"duration"`
}

type durationMetrics struct {
	Avg    float64 `json:"avg"`
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
	Median int64   `json:"median"`
	P95    int64   `json:"p95"`
}

// Overview aggregates the caller's recorded API calls over a period
// (7d, 30d or 90d; default 30d).
func (h *UsageHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	period := r.URL.Query().Get("period")
	days := 30
	switch period {
	case "7d":
		days = 7
	case "90d":
		days = 90
	default:
		period = "30d"
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	calls, err := h.store.ListAPICalls(r.Context(), userID, since)
	if err != nil {
		handleError(w, err)
		return
	}

	overview := analyticsOverview{
		Period:        period,
		TotalCalls:    len(calls),
		CallsByMethod: map[string]int{},
	}

	durations := make([]int64, 0, len(calls))
	for _, call := range calls {
		overview.CallsByMethod[call.Method]++
		if call.StatusCode >= 400 {
			overview.ErrorCalls++
		}
		durations = append(durations, call.DurationMS)
	}
	if overview.TotalCalls > 0 {
		overview.ErrorRate = float64(overview.ErrorCalls) / float64(overview.TotalCalls) * 100
	}
	overview.Duration = computeDurationMetrics(durations)

	respondJSON(w, http.StatusOK, overview)
}

func computeDurationMetrics(durations []int64) durationMetrics {
	if len(durations) == 0 {
		return durationMetrics{}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum int64
	for _, d := range durations {
		sum += d
	}
	p95Index := int(float64(len(durations)) * 0.95)
	if p95Index >= len(durations) {
		p95Index = len(durations) - 1
	}
	return durationMetrics{
		Avg:    float64(sum) / float64(len(durations)),
		Min:    durations[0],
		Max:    durations[len(durations)-1],
		Median: durations[len(durations)/2],
		P95:    durations[p95Index],
	}
}
