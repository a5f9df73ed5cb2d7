// Package request provides request ID middleware for correlation across logs,
// audit events, and error responses.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"sevagate/pkg/requestcontext"
)

// HeaderRequestID is the header a caller may use to supply its own
// correlation ID; the middleware echoes it back on the response.
const HeaderRequestID = "X-Request-ID"

// Middleware assigns each request a correlation ID. An incoming X-Request-ID
// is honored so upstream gateways can trace calls end to end; otherwise a
// fresh UUID is generated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
