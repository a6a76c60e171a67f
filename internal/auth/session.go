package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"latebird/internal/types"
)

// sessionIDPrefix namespaces session tokens so they are recognizable in
// headers and logs (the token value itself is never logged).
const sessionIDPrefix = "sess_"

// SessionRepo defines the data access methods needed by the SessionService.
type SessionRepo interface {
	Create(ctx context.Context, session *types.Session) error
	GetByID(ctx context.Context, id string) (*types.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// SessionService issues and revokes login sessions. The authentication
// handshake calls Issue after a successful credential upsert; the HTTP layer
// calls Revoke on logout.
type SessionService struct {
	repo     SessionRepo
	duration time.Duration
	clock    types.Clock
	logger   *slog.Logger
}

// NewSessionService creates a SessionService with the given session lifetime.
func NewSessionService(repo SessionRepo, duration time.Duration, clock types.Clock, logger *slog.Logger) *SessionService {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{repo: repo, duration: duration, clock: clock, logger: logger}
}

// Issue creates a new session for the user and returns its token.
func (s *SessionService) Issue(ctx context.Context, userID string) (*types.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.duration),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.InfoContext(ctx, "session issued", "user_id", userID, "expires_at", session.ExpiresAt)
	return session, nil
}

// Revoke deletes a session. Revoking an unknown token is not an error.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	return s.repo.DeleteByID(ctx, sessionID)
}

// generateSessionID produces a prefixed 256-bit random token.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return sessionIDPrefix + hex.EncodeToString(b), nil
}
