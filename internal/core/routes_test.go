package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"latebird/internal/types"
)

func mountedTestServer(t *testing.T) *Server {
	t.Helper()
	s := newTestServer(t, &MockAuthenticator{
		ResolveTokenFn: func(ctx context.Context, token string) (*types.Actor, error) {
			if token == "sess_ok" {
				return &types.Actor{UserID: "user-1"}, nil
			}
			return nil, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil)
		},
	})
	s.APIRouteRegistrars = append(s.APIRouteRegistrars, func(r chi.Router) {
		r.Get("/tweets", func(w http.ResponseWriter, req *http.Request) {
			Success(w, req, http.StatusOK, Envelope{"tweets": []string{}})
		})
	})
	s.MountRoutes()
	return s
}

func TestHealthBypassesAuth(t *testing.T) {
	s := mountedTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsBypassesAuth(t *testing.T) {
	s := mountedTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIGroupRequiresSession(t *testing.T) {
	s := mountedTestServer(t)

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tweets", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tweets", nil)
		req.Header.Set("Authorization", "Bearer sess_ok")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUnknownRouteIs404(t *testing.T) {
	s := mountedTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
