package auth

import (
	"net/http"
	"path"
	"strings"
)

// IsPublicPath reports whether requestPath is covered by one of publicPaths.
// Matching is segment aware (/health covers /health/live but not /healthcheck)
// and runs on the cleaned path, so traversals like /health/../api are not
// treated as public. Paths with encoded separators never match.
func IsPublicPath(requestPath string, publicPaths []string) bool {
	lower := strings.ToLower(requestPath)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%2e") {
		return false
	}

	clean := cleanPath(requestPath)
	for _, p := range publicPaths {
		public := cleanPath(p)
		if public == "/" || clean == public || strings.HasPrefix(clean, public+"/") {
			return true
		}
	}
	return false
}

func cleanPath(p string) string {
	c := path.Clean(p)
	if !strings.HasPrefix(c, "/") {
		c = "/" + c
	}
	return c
}

// WrapWithPublicPaths applies authMw to every request except the ones whose
// path is public
func WrapWithPublicPaths(authMw func(http.Handler) http.Handler, publicPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
