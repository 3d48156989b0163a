package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/cms485-trainer/internal/outbox"
)

// OutboxHandler serves GET /outbox?since=&limit= for the caller's own
// events.
func OutboxHandler(repo *outbox.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		var since int64
		if v := q.Get("since"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, "bad since", http.StatusBadRequest)
				return
			}
			since = n
		}
		limit := outbox.DefaultLimit
		if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
			limit = v
		}
		events, err := repo.Since(r.Context(), id, since, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		next := since
		if n := len(events); n > 0 {
			next = events[n-1].Offset
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events, "next": next})
	}
}
