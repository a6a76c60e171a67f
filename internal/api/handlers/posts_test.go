package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latebird/internal/govern"
	"latebird/internal/types"
)

type mockPostRepo struct {
	createFn        func(ctx context.Context, post *types.ScheduledPost) error
	listByUserFn    func(ctx context.Context, userID string) ([]*types.ScheduledPost, error)
	deletePendingFn func(ctx context.Context, id, userID string) (bool, error)
}

func (m *mockPostRepo) Create(ctx context.Context, post *types.ScheduledPost) error {
	return m.createFn(ctx, post)
}

func (m *mockPostRepo) ListByUser(ctx context.Context, userID string) ([]*types.ScheduledPost, error) {
	return m.listByUserFn(ctx, userID)
}

func (m *mockPostRepo) DeletePending(ctx context.Context, id, userID string) (bool, error) {
	return m.deletePendingFn(ctx, id, userID)
}

type mockCredRepo struct {
	getByUserIDFn func(ctx context.Context, userID string) (*types.UserCredential, error)
}

func (m *mockCredRepo) GetByUserID(ctx context.Context, userID string) (*types.UserCredential, error) {
	return m.getByUserIDFn(ctx, userID)
}

type mockPoster struct {
	postFn func(ctx context.Context, cred *types.UserCredential, message string) (string, error)
	calls  int
}

func (m *mockPoster) Post(ctx context.Context, cred *types.UserCredential, message string) (string, error) {
	m.calls++
	return m.postFn(ctx, cred, message)
}

type mockGovernor struct {
	checkFn        func(userID string, class types.OpClass) govern.Decision
	observeQuotaFn func(userID string, class types.OpClass, quota types.QuotaSnapshot)
}

func (m *mockGovernor) Check(userID string, class types.OpClass) govern.Decision {
	return m.checkFn(userID, class)
}

func (m *mockGovernor) ObserveQuota(userID string, class types.OpClass, quota types.QuotaSnapshot) {
	if m.observeQuotaFn != nil {
		m.observeQuotaFn(userID, class, quota)
	}
}

func allowAll() *mockGovernor {
	return &mockGovernor{
		checkFn: func(userID string, class types.OpClass) govern.Decision {
			return govern.Decision{Allowed: true, Remaining: 9}
		},
	}
}

func credsFor(userID string) *mockCredRepo {
	return &mockCredRepo{
		getByUserIDFn: func(ctx context.Context, id string) (*types.UserCredential, error) {
			if id == userID {
				return &types.UserCredential{
					UserID:       userID,
					Handle:       "earlybird",
					AccessToken:  types.SecretString("tok"),
					AccessSecret: types.SecretString("sec"),
				}, nil
			}
			return nil, nil
		},
	}
}

// serveAs routes the request through a chi router with the actor injected,
// mirroring what the auth middleware does in production.
func serveAs(t *testing.T, register func(chi.Router), actor types.Actor, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(types.WithActor(req.Context(), actor)))
		})
	})
	register(r)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlePostTweetImmediate(t *testing.T) {
	poster := &mockPoster{
		postFn: func(ctx context.Context, cred *types.UserCredential, message string) (string, error) {
			assert.Equal(t, "hello", message)
			return "tw_123", nil
		},
	}
	h := NewPostHandler(&mockPostRepo{}, credsFor("user-1"), poster, allowAll(), nil, nil)

	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodPost, "/tweet", `{"message":"hello"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["scheduled"])
	assert.Equal(t, "tw_123", body["tweetId"])
	assert.Equal(t, 1, poster.calls)
}

func TestHandlePostTweetScheduled(t *testing.T) {
	var created *types.ScheduledPost
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, post *types.ScheduledPost) error {
			post.ID = "post_abc"
			post.Status = types.PostStatusPending
			created = post
			return nil
		},
	}
	poster := &mockPoster{
		postFn: func(ctx context.Context, cred *types.UserCredential, message string) (string, error) {
			t.Fatal("scheduled posts must not call upstream at creation")
			return "", nil
		},
	}
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	h := NewPostHandler(repo, credsFor("user-1"), poster, allowAll(), nil, clock)

	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodPost, "/tweet", `{"message":"later","scheduleTime":"2026-03-01T13:00:00Z"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["scheduled"])
	assert.Equal(t, "post_abc", body["scheduleId"])

	require.NotNil(t, created)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, types.PostStatusPending, created.Status)
	assert.Equal(t, 0, poster.calls)
}

func TestHandlePostTweetValidation(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	h := NewPostHandler(&mockPostRepo{}, credsFor("user-1"), &mockPoster{}, allowAll(), nil, clock)

	cases := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":""}`},
		{"whitespace message", `{"message":"   "}`},
		{"message too long", `{"message":"` + strings.Repeat("x", 281) + `"}`},
		{"schedule in the past", `{"message":"hi","scheduleTime":"2026-03-01T11:00:00Z"}`},
		{"schedule equals now", `{"message":"hi","scheduleTime":"2026-03-01T12:00:00Z"}`},
		{"schedule too far out", `{"message":"hi","scheduleTime":"2026-06-01T12:00:00Z"}`},
		{"malformed json", `{"message":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
				http.MethodPost, "/tweet", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandlePostTweetMessageAt280RunesAccepted(t *testing.T) {
	poster := &mockPoster{
		postFn: func(ctx context.Context, cred *types.UserCredential, message string) (string, error) {
			return "tw_1", nil
		},
	}
	h := NewPostHandler(&mockPostRepo{}, credsFor("user-1"), poster, allowAll(), nil, nil)

	// 280 multibyte runes; rune count is what matters, not byte length.
	message := strings.Repeat("ü", 280)
	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodPost, "/tweet", `{"message":"`+message+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlePostTweetGovernorDenial(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	denied := &mockGovernor{
		checkFn: func(userID string, class types.OpClass) govern.Decision {
			assert.Equal(t, types.ClassPost, class)
			return govern.Decision{
				Allowed: false,
				ResetAt: now.Add(10 * time.Minute),
				RetryAt: now.Add(10 * time.Minute),
				Wait:    10 * time.Minute,
			}
		},
	}
	poster := &mockPoster{
		postFn: func(ctx context.Context, cred *types.UserCredential, message string) (string, error) {
			t.Fatal("denied requests must not reach upstream")
			return "", nil
		},
	}
	h := NewPostHandler(&mockPostRepo{}, credsFor("user-1"), poster, denied, nil, nil)

	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodPost, "/tweet", `{"message":"hello"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(now.Add(10*time.Minute).Unix()), body["resetTime"])
	assert.Equal(t, float64(600), body["remainingTime"])
	assert.Equal(t, 0, poster.calls)
}

func TestHandlePostTweetNoCredentials(t *testing.T) {
	creds := &mockCredRepo{
		getByUserIDFn: func(ctx context.Context, userID string) (*types.UserCredential, error) {
			return nil, nil
		},
	}
	h := NewPostHandler(&mockPostRepo{}, creds, &mockPoster{}, allowAll(), nil, nil)

	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodPost, "/tweet", `{"message":"hello"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleListScheduled(t *testing.T) {
	posted := time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC)
	errMsg := "upstream said no"
	repo := &mockPostRepo{
		listByUserFn: func(ctx context.Context, userID string) ([]*types.ScheduledPost, error) {
			assert.Equal(t, "user-1", userID)
			return []*types.ScheduledPost{
				{ID: "post_1", Message: "first", Status: types.PostStatusPosted, PostedAt: &posted},
				{ID: "post_2", Message: "second", Status: types.PostStatusFailed, LastError: &errMsg},
				{ID: "post_3", Message: "third", Status: types.PostStatusPending},
			}, nil
		},
	}
	h := NewPostHandler(repo, credsFor("user-1"), &mockPoster{}, allowAll(), nil, nil)

	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodGet, "/scheduled-tweets", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["success"])
	tweets, ok := body["tweets"].([]any)
	require.True(t, ok)
	require.Len(t, tweets, 3)

	first := tweets[0].(map[string]any)
	assert.Equal(t, "posted", first["status"])
	second := tweets[1].(map[string]any)
	assert.Equal(t, "upstream said no", second["error"])
}

func TestHandleListScheduledEmpty(t *testing.T) {
	repo := &mockPostRepo{
		listByUserFn: func(ctx context.Context, userID string) ([]*types.ScheduledPost, error) {
			return nil, nil
		},
	}
	h := NewPostHandler(repo, credsFor("user-1"), &mockPoster{}, allowAll(), nil, nil)

	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodGet, "/scheduled-tweets", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tweets":[]`)
}

func TestHandleCancelScheduled(t *testing.T) {
	t.Run("pending post is deleted", func(t *testing.T) {
		repo := &mockPostRepo{
			deletePendingFn: func(ctx context.Context, id, userID string) (bool, error) {
				assert.Equal(t, "post_1", id)
				assert.Equal(t, "user-1", userID)
				return true, nil
			},
		}
		h := NewPostHandler(repo, credsFor("user-1"), &mockPoster{}, allowAll(), nil, nil)

		rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
			http.MethodDelete, "/scheduled-tweets/post_1", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	})

	t.Run("absent or non-pending post is 404", func(t *testing.T) {
		repo := &mockPostRepo{
			deletePendingFn: func(ctx context.Context, id, userID string) (bool, error) {
				return false, nil
			},
		}
		h := NewPostHandler(repo, credsFor("user-1"), &mockPoster{}, allowAll(), nil, nil)

		rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
			http.MethodDelete, "/scheduled-tweets/post_gone", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, false, body["success"])
	})
}

func TestHandleMe(t *testing.T) {
	h := NewMeHandler(credsFor("user-1"), nil)

	rec := serveAs(t, h.RegisterRoutes, types.Actor{UserID: "user-1"},
		http.MethodGet, "/me", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-1", user["id"])
	assert.Equal(t, "earlybird", user["handle"])
	assert.NotContains(t, rec.Body.String(), "tok")
}
