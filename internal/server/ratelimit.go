// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// rateLimit builds a sliding-window rate limiter keyed by client IP,
// applied to the login route to slow down credential guessing.
func rateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	limiter := httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, apiError{Code: "RATE_LIMIT_EXCEEDED", Message: "too many requests"})
		}),
	)
	return limiter
}
