package core

import (
	"net/http"
	"strings"

	"latebird/internal/types"
)

// SessionCookieName is the cookie the web frontend stores its session token
// in. API clients may send the same token as a Bearer header instead.
const SessionCookieName = "latebird_session"

// AuthMiddleware resolves the session token from the request and injects the
// resulting Actor into the context. Tokens are accepted from the session
// cookie or an "Authorization: Bearer" header, with the header winning when
// both are present.
//
// A nil Authenticator (tests that exercise routing only) passes through.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := extractSessionToken(r)
		actor, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			Error(w, r, err)
			return
		}
		if actor == nil {
			Error(w, r, types.NewAppError(types.ErrCodeAuthSessionInvalid, "invalid session", nil))
			return
		}

		ctx := types.WithActor(r.Context(), *actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractSessionToken pulls the session token from the Authorization header
// or the session cookie. Returns empty when neither is present.
func extractSessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		const prefix = "Bearer "
		if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			return strings.TrimSpace(header[len(prefix):])
		}
		return ""
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
