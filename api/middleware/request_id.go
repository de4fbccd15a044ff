package middleware

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/livemart/livemart-backend/pkg/logger"
)

const maxRequestIDLength = 128

// RequestID keeps a caller supplied X-Request-Id when it is short enough,
// otherwise lets chi mint one. The id is echoed on the response and added to
// the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		tagged := chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chimw.GetReqID(r.Context())
			w.Header().Set(chimw.RequestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		}))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			incoming := strings.TrimSpace(r.Header.Get(chimw.RequestIDHeader))
			if len(incoming) > maxRequestIDLength {
				r.Header.Del(chimw.RequestIDHeader)
			} else if incoming != "" {
				r.Header.Set(chimw.RequestIDHeader, incoming)
			}
			tagged.ServeHTTP(w, r)
		})
	}
}
