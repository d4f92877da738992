package www

import (
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

// You can disable this when running unit tests
var EnableRateLimiting = true

// HandleLimited is Handle, but each client IP may only make 'requests' calls per 'window'.
// Excess calls get a 429 Too Many Requests.
func HandleLimited(log logs.Log, router *httprouter.Router, method, path string, requests int, window time.Duration, handle httprouter.Handle) {
	limiter := httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
	Handle(log, router, method, path, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle(w, r, params)
		})
		if !EnableRateLimiting {
			inner.ServeHTTP(w, r)
			return
		}
		limiter(inner).ServeHTTP(w, r)
	})
}
