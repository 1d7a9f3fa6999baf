package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware. Zero-valued fields fall back to
// defaults suited to a browser-facing CRUD API.
type CORSConfig struct {
	// AllowOrigins lists the origins cross-origin requests may come from.
	// "*" allows all. Default: ["*"].
	AllowOrigins []string

	// AllowMethods lists the methods clients may use. Default: the CRUD
	// verbs plus OPTIONS.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send.
	// Default: ["Content-Type", "Authorization"].
	AllowHeaders []string

	// ExposeHeaders lists response headers exposed to browser scripts.
	ExposeHeaders []string

	// AllowCredentials permits cookies and authorization headers on
	// cross-origin requests.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. 0 sends no header.
	MaxAge int
}

// CORSAllowAll is the permissive development configuration: pass it (nil) to
// CORS to allow all origins with the default methods and headers.
var CORSAllowAll *CORSConfig = nil

// CORS returns middleware that answers preflight requests and sets CORS
// headers on matched origins.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = &CORSConfig{}
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	headers := cfg.AllowHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization"}
	}

	wildcard := slices.Contains(origins, "*")
	methodsValue := strings.Join(methods, ", ")
	headersValue := strings.Join(headers, ", ")
	exposeValue := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := wildcard || (origin != "" && slices.Contains(origins, origin))

			if allowed {
				// The spec forbids "*" together with credentials; echo the
				// requesting origin in that case.
				switch {
				case origin != "" && (!wildcard || cfg.AllowCredentials):
					w.Header().Set("Access-Control-Allow-Origin", origin)
				default:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", methodsValue)
				w.Header().Set("Access-Control-Allow-Headers", headersValue)
				if exposeValue != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposeValue)
				}
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
