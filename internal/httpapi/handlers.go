// Package httpapi implements the HTTP side-channel: health checks and
// the joinable-room directory. Room creation happens over the
// websocket (create-room) rather than a REST endpoint — see DESIGN.md.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/DoyleJ11/otrio-backend/internal/registry"
)

// Healthz reports process liveness for load balancer probes.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ListRooms handles GET /rooms, translating query parameters into a
// registry.ListFilter.
func ListRooms(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := registry.ListFilter{
			NameContains: q.Get("name"),
			PublicOnly:   q.Get("public") != "false",
			JoinableOnly: q.Get("joinable") != "false",
			SortBy:       registry.SortField(q.Get("sort")),
			SortDesc:     q.Get("order") == "desc",
		}
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
			filter.Limit = limit
		}
		if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
			filter.Offset = offset
		}

		result, err := reg.List(r.Context(), filter)
		if err != nil {
			http.Error(w, "failed to list rooms", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":   result.Items,
			"total":   result.Total,
			"hasMore": result.HasMore,
		})
	}
}
