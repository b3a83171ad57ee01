package server

import (
	"net/http"
	"slices"
)

// corsPolicy answers browser requests from the configured origins.
type corsPolicy struct {
	origins  []string
	wildcard bool
}

func newCORSPolicy(origins []string) *corsPolicy {
	return &corsPolicy{
		origins:  slices.Clone(origins),
		wildcard: slices.Contains(origins, "*"),
	}
}

func (p *corsPolicy) allows(origin string) bool {
	return origin != "" && (p.wildcard || slices.Contains(p.origins, origin))
}

// withCORS sets Access-Control-Allow-Origin for allowed origins and answers
// preflight requests. Other origins get no CORS headers, so the browser
// blocks the response.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		policy := s.cors.Load()
		w.Header().Add("Vary", "Origin")

		if policy == nil || !policy.allows(origin) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
