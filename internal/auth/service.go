package auth

import (
	"context"
	"strings"

	"latebird/internal/types"
)

// CredentialRepo looks up the stored credential for a session's user so the
// resolved actor carries the handle.
type CredentialRepo interface {
	GetByUserID(ctx context.Context, userID string) (*types.UserCredential, error)
}

// Authenticator resolves session tokens into actors. It distinguishes a
// missing token from an unknown one and an unknown one from an expired one so
// the HTTP layer can report each case precisely.
type Authenticator struct {
	sessions SessionRepo
	creds    CredentialRepo
	clock    types.Clock
}

// NewAuthenticator creates an Authenticator over the given repositories.
func NewAuthenticator(sessions SessionRepo, creds CredentialRepo, clock types.Clock) *Authenticator {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Authenticator{sessions: sessions, creds: creds, clock: clock}
}

// ResolveToken validates a session token and returns the acting user.
func (a *Authenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil)
	}

	session, err := a.sessions.GetByID(ctx, token)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up session", err)
	}
	if session == nil {
		return nil, types.NewAppError(types.ErrCodeAuthSessionInvalid, "invalid session", nil)
	}
	if session.Expired(a.clock.Now()) {
		return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session expired", nil)
	}

	actor := &types.Actor{UserID: session.UserID}
	cred, err := a.creds.GetByUserID(ctx, session.UserID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up credentials", err)
	}
	if cred != nil {
		actor.Handle = cred.Handle
	}
	return actor, nil
}
