package http

import (
	"net/http"
	"strconv"

	syncx "github.com/campuslabs/examportal/internal/sync"
)

// GET /sync/events?after=0&limit=100 — the replay feed offline sites poll to
// catch up on attempt activity. Offsets are monotonic per site.
func SyncEventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after := int64(0)
		if s := r.URL.Query().Get("after"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 0 {
				http.Error(w, "bad after offset", http.StatusBadRequest)
				return
			}
			after = v
		}
		list, err := events.Since(r.Context(), after, parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, err)
			return
		}
		next := after
		if len(list) > 0 {
			next = list[len(list)-1].Offset
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":      list,
			"next_offset": next,
		})
	}
}
