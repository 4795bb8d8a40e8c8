// Package query transforms a materialized endpoint collection according to
// request parameters: search, sort, and pagination. Identical inputs always
// produce identical output ordering, which keeps repeated reads and paging
// consistent between writes.
package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sheetserve/sheetserve/internal/domain"
)

const (
	// DefaultPageSize is the public data API default.
	DefaultPageSize = 100
	// MaxPageSize clamps caller-supplied limits.
	MaxPageSize = 1000
	// DefaultListPageSize is the management listing default (projects,
	// endpoints). Deliberately smaller than the data API default.
	DefaultListPageSize = 10
)

// Params are the recognized query parameters of a collection read.
type Params struct {
	ID        string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Page describes one page of results.
type Page struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Parse extracts Params from raw query values, applying the public data API
// defaults and clamps.
func Parse(values url.Values) Params {
	p := Params{
		ID:        values.Get("id"),
		Search:    values.Get("search"),
		SortBy:    values.Get("sortBy"),
		SortOrder: "asc",
		Page:      1,
		Limit:     DefaultPageSize,
	}
	if values.Get("sortOrder") == "desc" {
		p.SortOrder = "desc"
	}
	if n, err := strconv.Atoi(values.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(values.Get("limit")); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// FindByID scans the collection for the record with the given id.
func FindByID(records []domain.Record, id string) (domain.Record, bool) {
	for _, r := range records {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// Apply runs search, sort and pagination over the collection and returns
// the page plus pagination metadata. The input slice is not modified.
func Apply(records []domain.Record, p Params) ([]domain.Record, Page) {
	filtered := records
	if term := strings.TrimSpace(p.Search); term != "" {
		term = strings.ToLower(term)
		filtered = make([]domain.Record, 0, len(records))
		for _, r := range records {
			if matches(r, term) {
				filtered = append(filtered, r)
			}
		}
	}

	if p.SortBy != "" {
		sorted := make([]domain.Record, len(filtered))
		copy(sorted, filtered)
		desc := p.SortOrder == "desc"
		// Stable so ties keep their original order in both directions.
		sort.SliceStable(sorted, func(i, j int) bool {
			c := compare(sorted[i][p.SortBy], sorted[j][p.SortBy])
			if desc {
				return c > 0
			}
			return c < 0
		})
		filtered = sorted
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	total := len(filtered)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return filtered[start:end], Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// matches reports whether any field's stringified value contains term
// (case-insensitive).
func matches(r domain.Record, term string) bool {
	for _, v := range r {
		if strings.Contains(strings.ToLower(stringify(v)), term) {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// compare orders two dynamic field values: numerically when both sides are
// numbers, otherwise by string form. A missing (nil) value on either side
// compares equal, so records lacking the sort field keep their relative
// order.
func compare(a, b any) int {
	if a == nil || b == nil {
		return 0
	}
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(stringify(a), stringify(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
