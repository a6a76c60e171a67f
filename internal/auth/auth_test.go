package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latebird/internal/types"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestCryptorRoundTrip(t *testing.T) {
	c, err := NewCryptor(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("super-secret-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "super-secret-token")

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-token", opened)
}

func TestCryptorSealIsNondeterministic(t *testing.T) {
	c, err := NewCryptor(testKey)
	require.NoError(t, err)

	a, err := c.Seal("same input")
	require.NoError(t, err)
	b, err := c.Seal("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCryptorRejectsBadKey(t *testing.T) {
	_, err := NewCryptor("deadbeef")
	assert.Error(t, err)

	_, err = NewCryptor("not hex at all")
	assert.Error(t, err)
}

func TestCryptorOpenRejectsTampering(t *testing.T) {
	c, err := NewCryptor(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("payload")
	require.NoError(t, err)

	_, err = c.Open("AAAA" + sealed[4:])
	assert.Error(t, err)
}

type mockSessionRepo struct {
	createFn  func(ctx context.Context, s *types.Session) error
	getByIDFn func(ctx context.Context, id string) (*types.Session, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, s *types.Session) error {
	return m.createFn(ctx, s)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*types.Session, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

type mockCredentialRepo struct {
	getByUserIDFn func(ctx context.Context, userID string) (*types.UserCredential, error)
}

func (m *mockCredentialRepo) GetByUserID(ctx context.Context, userID string) (*types.UserCredential, error) {
	return m.getByUserIDFn(ctx, userID)
}

func TestSessionServiceIssue(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	var stored *types.Session
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, s *types.Session) error {
			stored = s
			return nil
		},
	}

	svc := NewSessionService(repo, 7*24*time.Hour, clock, nil)
	session, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.True(t, strings.HasPrefix(session.ID, "sess_"))
	assert.Len(t, session.ID, len("sess_")+64)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, clock.Now().Add(7*24*time.Hour), session.ExpiresAt)
}

func TestSessionServiceIssueUniqueTokens(t *testing.T) {
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, s *types.Session) error { return nil },
	}
	svc := NewSessionService(repo, time.Hour, nil, nil)

	a, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)
	b, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAuthenticatorResolveToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &types.FixedClock{T: now}

	sessions := map[string]*types.Session{
		"sess_live": {
			ID:        "sess_live",
			UserID:    "user-1",
			CreatedAt: now.Add(-time.Hour),
			ExpiresAt: now.Add(time.Hour),
		},
		"sess_stale": {
			ID:        "sess_stale",
			UserID:    "user-2",
			CreatedAt: now.Add(-48 * time.Hour),
			ExpiresAt: now.Add(-time.Minute),
		},
	}
	sessionRepo := &mockSessionRepo{
		getByIDFn: func(ctx context.Context, id string) (*types.Session, error) {
			return sessions[id], nil
		},
	}
	credRepo := &mockCredentialRepo{
		getByUserIDFn: func(ctx context.Context, userID string) (*types.UserCredential, error) {
			if userID == "user-1" {
				return &types.UserCredential{UserID: "user-1", Handle: "earlybird"}, nil
			}
			return nil, nil
		},
	}

	auth := NewAuthenticator(sessionRepo, credRepo, clock)

	t.Run("valid session", func(t *testing.T) {
		actor, err := auth.ResolveToken(context.Background(), "sess_live")
		require.NoError(t, err)
		assert.Equal(t, "user-1", actor.UserID)
		assert.Equal(t, "earlybird", actor.Handle)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := auth.ResolveToken(context.Background(), "   ")
		requireAppErrorCode(t, err, types.ErrCodeAuthSessionMissing)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := auth.ResolveToken(context.Background(), "sess_nope")
		requireAppErrorCode(t, err, types.ErrCodeAuthSessionInvalid)
	})

	t.Run("expired session", func(t *testing.T) {
		_, err := auth.ResolveToken(context.Background(), "sess_stale")
		requireAppErrorCode(t, err, types.ErrCodeAuthSessionExpired)
	})
}

func requireAppErrorCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok, "expected *types.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}
