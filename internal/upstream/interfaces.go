// Package upstream is the anti-corruption layer between latebird and the
// social provider's API. All outbound calls go through one shared circuit
// breaker and a process-level smoothing limiter, and provider errors are
// mapped into the AppError taxonomy before they reach domain code.
package upstream

import (
	"context"

	"latebird/internal/types"
)

// Client is the call contract the rest of the system depends on. Every
// operation signs with the supplied user's delegated credentials.
type Client interface {
	// Post publishes a message and returns the provider's tweet ID.
	Post(ctx context.Context, cred *types.UserCredential, message string) (string, error)

	// Timeline returns the user's home timeline, newest first, plus the
	// provider quota observed on the call when the provider reported one.
	Timeline(ctx context.Context, cred *types.UserCredential, limit int) ([]types.Tweet, *types.QuotaSnapshot, error)

	// UserTweets returns the user's own recent posts (analytics input),
	// plus the observed provider quota.
	UserTweets(ctx context.Context, cred *types.UserCredential, limit int) ([]types.Tweet, *types.QuotaSnapshot, error)
}
