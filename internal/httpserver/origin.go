package httpserver

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/metrics"
)

// corsMiddleware answers preflights and sets CORS headers for origins the
// configured policy allows. Disallowed origins get no CORS headers; routes
// that must refuse them outright use withOriginPolicy.
func corsMiddleware(cfg config.Config) Middleware {
	policy := cfg.OriginPolicy()
	c := cors.New(cors.Options{
		AllowOriginRequestFunc: func(r *http.Request, origin string) bool {
			return policy.Allows(origin, r.Host)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler
}

func (s *Server) withOriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	policy := s.cfg.OriginPolicy()
	return func(w http.ResponseWriter, r *http.Request) {
		if !policy.AllowsRequest(r) {
			s.metrics.Inc(metrics.OriginRejected)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
