package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps (page-1)*page_size far from overflow; later pages are empty.
	maxPage = 100_000
)

// DecodeJSON decodes the body into dst and validates it. On failure it writes
// the error response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			JSONError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
		case errors.Is(err, io.EOF):
			JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Request body is required", nil)
		default:
			JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		}
		return false
	}
	if details := ValidateStruct(dst); len(details) > 0 {
		JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
		return false
	}
	return true
}

type Page struct {
	Page     int
	PageSize int
}

func (p Page) Limit() int  { return p.PageSize }
func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

// Meta builds the pagination block returned alongside list responses.
func (p Page) Meta(total int) map[string]any {
	return map[string]any{
		"page":        p.Page,
		"page_size":   p.PageSize,
		"total":       total,
		"total_pages": (total + p.PageSize - 1) / p.PageSize,
	}
}

// PageFrom reads page and page_size (limit is accepted as an alias).
func PageFrom(r *http.Request) Page {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	size := query.Get("page_size")
	if size == "" {
		size = query.Get("limit")
	}
	pageSize, _ := strconv.Atoi(size)
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return Page{Page: page, PageSize: pageSize}
}

// BoolParam parses an optional boolean query parameter.
func BoolParam(r *http.Request, name string) *bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
