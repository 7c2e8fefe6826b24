package shared

import (
	"net/http"
	"strconv"
)

// ListWindow bounds a paginated listing.
type ListWindow struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// WindowFromRequest reads limit/offset query parameters, clamping the
// limit to maxLimit and defaulting to defLimit.
func WindowFromRequest(r *http.Request, defLimit, maxLimit int) ListWindow {
	limit := defLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return ListWindow{Limit: limit, Offset: offset}
}
