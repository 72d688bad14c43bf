package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// RFC 6750 Section 3 error codes
const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeInvalidToken   = "invalid_token"
	errorCodeInsufficient   = "insufficient_scope"
)

const realm = "catalog-bff"

var errNoBearer = errors.New("authorization header is not a bearer token")

// Middleware authenticates requests with a Verifier
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware creates a Middleware. A nil verifier treats every caller as
// anonymous and rejects every role check.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// Optional attaches the claims of a valid bearer token to the request
// context. Requests without an Authorization header pass through anonymously;
// a header carrying an invalid token is rejected with 401.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || m.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(header)
		if err != nil {
			slog.Warn("Token extraction failed", "error", err, "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, errorCodeInvalidRequest, "malformed authorization header")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			slog.Warn("Token validation failed", "error", err, "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, errorCodeInvalidToken, "token validation failed")
			return
		}

		slog.Debug("Authenticated request", "user_id", claims.UserID, "role", claims.Role, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole rejects requests whose claims carry none of roles. It must run
// after Optional.
func (m *Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, errorCodeInvalidRequest, "authentication required")
				return
			}
			if !claims.HasRole(roles...) {
				slog.Warn("Role not allowed", "user_id", claims.UserID, "role", claims.Role, "path", r.URL.Path)
				writeError(w, http.StatusForbidden, errorCodeInsufficient, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errNoBearer
	}
	return strings.TrimSpace(token), nil
}

// sanitizeHeaderValue strips CR and LF and escapes quotes for quoted-string use
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, `"`, `\"`)
}

// writeError writes a JSON error with an RFC 6750 WWW-Authenticate header
func writeError(w http.ResponseWriter, status int, errCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		realm, errCode, sanitizeHeaderValue(description)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]string{"error": description}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
