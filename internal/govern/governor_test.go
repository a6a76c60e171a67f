package govern

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latebird/internal/types"
)

func testLimits() map[types.OpClass]ClassLimit {
	return map[types.OpClass]ClassLimit{
		types.ClassPost:         {Window: 15 * time.Minute, Max: 3, Cooldown: 10 * time.Second},
		types.ClassTimelineRead: {Window: time.Minute, Max: 5, Cooldown: 0},
	}
}

func TestCheck_AdmitsExactlyMaxWithinWindow(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(testLimits(), clock)

	// Space checks beyond the cooldown so only the window cap governs.
	for i := 0; i < 3; i++ {
		d := g.Check("user_1", types.ClassPost)
		require.True(t, d.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 3-(i+1), d.Remaining)
		clock.Advance(11 * time.Second)
	}

	d := g.Check("user_1", types.ClassPost)
	require.False(t, d.Allowed, "request beyond the window cap must be denied")
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, d.ResetAt, d.RetryAt, "window-cap denial retries at window reset")
	assert.Positive(t, d.Wait)
}

func TestCheck_WindowExpiryResetsCount(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(testLimits(), clock)

	for i := 0; i < 3; i++ {
		require.True(t, g.Check("user_1", types.ClassPost).Allowed)
		clock.Advance(11 * time.Second)
	}
	require.False(t, g.Check("user_1", types.ClassPost).Allowed)

	clock.Advance(16 * time.Minute)
	d := g.Check("user_1", types.ClassPost)
	assert.True(t, d.Allowed, "a fresh window admits again")
	assert.Equal(t, 2, d.Remaining)
}

func TestCheck_CooldownDeniesRapidSuccession(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(testLimits(), clock)

	require.True(t, g.Check("user_1", types.ClassPost).Allowed)

	clock.Advance(2 * time.Second)
	d := g.Check("user_1", types.ClassPost)
	require.False(t, d.Allowed, "second request inside cooldown must be denied")
	assert.Equal(t, 8*time.Second, d.Wait)
	assert.Equal(t, clock.Now().Add(8*time.Second), d.RetryAt)

	// Denial must not consume quota.
	count, _, ok := g.Snapshot("user_1", types.ClassPost)
	require.True(t, ok)
	assert.Equal(t, 1, count)

	clock.Advance(9 * time.Second)
	assert.True(t, g.Check("user_1", types.ClassPost).Allowed, "admitted after cooldown elapses")
}

func TestCheck_UsersAndClassesAreIsolated(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(testLimits(), clock)

	require.True(t, g.Check("user_1", types.ClassPost).Allowed)
	// Same user, different class: independent state, no shared cooldown.
	assert.True(t, g.Check("user_1", types.ClassTimelineRead).Allowed)
	// Different user, same class: independent state.
	assert.True(t, g.Check("user_2", types.ClassPost).Allowed)
}

func TestCheck_MissingUserAlwaysDenies(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(testLimits(), clock)

	d := g.Check("", types.ClassPost)
	require.False(t, d.Allowed)
	assert.Equal(t, deniedRetryHint, d.Wait)
}

func TestCheck_UnknownClassDenies(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(testLimits(), clock)

	d := g.Check("user_1", types.OpClass("export"))
	assert.False(t, d.Allowed)
}

func TestObserveQuota_SaturatesWindowWhenProviderExhausted(t *testing.T) {
	clock := &types.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := New(testLimits(), clock)

	require.True(t, g.Check("user_1", types.ClassTimelineRead).Allowed)

	providerReset := clock.Now().Add(10 * time.Minute)
	g.ObserveQuota("user_1", types.ClassTimelineRead, types.QuotaSnapshot{
		Limit: 15, Remaining: 0, ResetAt: providerReset,
	})

	d := g.Check("user_1", types.ClassTimelineRead)
	require.False(t, d.Allowed, "local window must saturate when provider reports exhaustion")
	assert.Equal(t, providerReset, d.ResetAt)

	// A snapshot with remaining quota must not loosen anything.
	g.ObserveQuota("user_1", types.ClassTimelineRead, types.QuotaSnapshot{
		Limit: 15, Remaining: 12, ResetAt: providerReset.Add(time.Hour),
	})
	assert.False(t, g.Check("user_1", types.ClassTimelineRead).Allowed)
}

func TestCheck_ConcurrentChecksNeverOveradmit(t *testing.T) {
	g := New(map[types.OpClass]ClassLimit{
		types.ClassTimelineRead: {Window: time.Minute, Max: 10, Cooldown: 0},
	}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Check("user_1", types.ClassTimelineRead).Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted, "exactly Max checks may be admitted in one window")
}
