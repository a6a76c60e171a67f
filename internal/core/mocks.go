package core

import (
	"context"

	"latebird/internal/types"
)

// MockAuthenticator is a test double for the Authenticator interface, shared
// by core and handler tests.
type MockAuthenticator struct {
	ResolveTokenFn func(ctx context.Context, token string) (*types.Actor, error)
}

// ResolveToken delegates to ResolveTokenFn.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	return m.ResolveTokenFn(ctx, token)
}
