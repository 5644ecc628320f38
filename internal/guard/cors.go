package guard

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// applyCORS sets CORS headers for allowed origins and reports whether r is a
// preflight request that has been fully answered.
func applyCORS(cfg CORSConfig, w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	h := w.Header()
	h.Add("Vary", "Origin")

	if !originAllowed(cfg.AllowedOrigins, origin) {
		if isPreflight(r) {
			w.WriteHeader(http.StatusForbidden)
			return true
		}
		return false
	}

	if slices.Contains(cfg.AllowedOrigins, "*") && !cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
	}
	if cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if !isPreflight(r) {
		return false
	}
	h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	if cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
	}
	w.WriteHeader(http.StatusNoContent)
	return true
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}
