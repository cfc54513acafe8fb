package opshttp

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

// throttleResetHandler clears both throttling stages for the client key in
// the path, the same key the limiters count under (the client IP).
func throttleResetHandler(rs ThrottleResetter, onReset func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" || len(key) > 256 {
			http.Error(w, "invalid key", http.StatusBadRequest)
			return
		}

		if err := rs.Reset(ctx, key); err != nil {
			log.FromContext(ctx).Error(ctx, err, "throttle reset failed", "key", key)
			http.Error(w, "reset failed", http.StatusInternalServerError)
			return
		}

		if onReset != nil {
			onReset()
		}
		log.FromContext(ctx).Info(ctx, "throttle reset", "key", key)
		w.WriteHeader(http.StatusNoContent)
	}
}
