// Package govern implements in-process admission control for outbound calls.
//
// The Governor tracks per-user, per-operation-class request counts and
// cooldowns, and decides admit/deny independently of (and tighter than) the
// upstream provider's own quotas. State is process-local and intentionally
// not persisted: a restart resets all windows. The Governor is an explicitly
// owned, injected component rather than a package-level singleton so it can
// later be swapped for a shared store without touching call sites.
package govern

import (
	"sync"
	"time"

	"latebird/internal/types"
)

// ClassLimit is the admission policy for one operation class: at most Max
// admitted requests per rolling Window, with at least Cooldown between two
// consecutive admitted requests.
type ClassLimit struct {
	Window   time.Duration
	Max      int
	Cooldown time.Duration
}

// Decision is the outcome of an admission check. ResetAt and Remaining are
// populated on every decision; RetryAt and Wait only when denied.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	RetryAt   time.Time
	Wait      time.Duration
}

// deniedRetryHint is the fixed retry hint returned for unauthenticated or
// unclassifiable checks.
const deniedRetryHint = 30 * time.Second

type stateKey struct {
	userID string
	class  types.OpClass
}

// state is the mutable window for one user/class pair. Guarded by Governor.mu.
type state struct {
	count       int
	windowReset time.Time
	lastAdmit   time.Time
}

// Governor is the process-wide admission controller. All methods are safe for
// concurrent use; check-and-increment is a single critical section so two
// racing requests can never both consume the last slot.
type Governor struct {
	mu     sync.Mutex
	states map[stateKey]*state
	limits map[types.OpClass]ClassLimit
	clock  types.Clock
}

// New creates a Governor with the given per-class limits. A nil clock
// defaults to the real clock.
func New(limits map[types.OpClass]ClassLimit, clock types.Clock) *Governor {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Governor{
		states: make(map[stateKey]*state),
		limits: limits,
		clock:  clock,
	}
}

// Check decides whether one request of the given class may proceed for the
// given user. If admitted, the window count and last-admit marker are updated
// atomically with the decision. Denial has no side effects.
//
// An empty userID always denies with a short fixed retry hint: admission is
// keyed by user, and an unauthenticated caller has no key.
func (g *Governor) Check(userID string, class types.OpClass) Decision {
	now := g.clock.Now()

	limit, ok := g.limits[class]
	if userID == "" || !ok || !class.Valid() {
		return Decision{
			Allowed: false,
			ResetAt: now.Add(deniedRetryHint),
			RetryAt: now.Add(deniedRetryHint),
			Wait:    deniedRetryHint,
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := stateKey{userID: userID, class: class}
	st, ok := g.states[key]
	if !ok {
		st = &state{windowReset: now.Add(limit.Window)}
		g.states[key] = st
	}

	// Window expiry resets both the count and the cooldown marker.
	if !now.Before(st.windowReset) {
		st.count = 0
		st.lastAdmit = time.Time{}
		st.windowReset = now.Add(limit.Window)
	}

	// Constraint (a): inter-request cooldown since the last admitted request.
	if !st.lastAdmit.IsZero() {
		if since := now.Sub(st.lastAdmit); since < limit.Cooldown {
			retryAt := st.lastAdmit.Add(limit.Cooldown)
			return Decision{
				Allowed:   false,
				Remaining: limit.Max - st.count,
				ResetAt:   st.windowReset,
				RetryAt:   retryAt,
				Wait:      retryAt.Sub(now),
			}
		}
	}

	// Constraint (b): maximum admitted count within the rolling window.
	if st.count >= limit.Max {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   st.windowReset,
			RetryAt:   st.windowReset,
			Wait:      st.windowReset.Sub(now),
		}
	}

	st.count++
	st.lastAdmit = now
	return Decision{
		Allowed:   true,
		Remaining: limit.Max - st.count,
		ResetAt:   st.windowReset,
	}
}

// ObserveQuota reconciles the local window with the provider's own reported
// quota. When the provider says nothing remains, the local window saturates
// until the provider's reset time so we stop issuing calls it would reject.
// This is a best-effort tightening, not a correctness requirement; snapshots
// that would loosen the local policy are ignored.
func (g *Governor) ObserveQuota(userID string, class types.OpClass, quota types.QuotaSnapshot) {
	limit, ok := g.limits[class]
	if userID == "" || !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := stateKey{userID: userID, class: class}
	st, exists := g.states[key]
	if !exists {
		st = &state{windowReset: g.clock.Now().Add(limit.Window)}
		g.states[key] = st
	}

	if quota.Remaining <= 0 && quota.ResetAt.After(st.windowReset) {
		st.count = limit.Max
		st.windowReset = quota.ResetAt
	}
}

// Snapshot returns the current count and reset time for a user/class pair,
// primarily for introspection in tests and diagnostics.
func (g *Governor) Snapshot(userID string, class types.OpClass) (count int, resetAt time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, exists := g.states[stateKey{userID: userID, class: class}]
	if !exists {
		return 0, time.Time{}, false
	}
	return st.count, st.windowReset, true
}
