package types

import "time"

// MaxMessageLength is the maximum message length in runes, matching the
// upstream provider's limit. Enforced at creation time only; records already
// persisted are never re-validated.
const MaxMessageLength = 280

// ScheduledPost is a message queued for future delivery. It is created by the
// post endpoint when a future scheduleTime is supplied, mutated exclusively by
// the dispatcher, and deleted only by owner cancellation while still pending.
type ScheduledPost struct {
	ID           string     `json:"id"`
	UserID       string     `json:"-"`
	Message      string     `json:"message"`
	ScheduledFor time.Time  `json:"scheduleTime"`
	Status       PostStatus `json:"status"`
	PostedAt     *time.Time `json:"postedAt,omitempty"`
	LastError    *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"-"`
}

// UserCredential holds the long-lived delegated credentials and profile
// metadata for one user, keyed by the provider's user ID. It is upserted at
// every successful authentication handshake.
//
// AccessToken and AccessSecret must both be present before any upstream call
// can succeed; presence is a precondition, format is not re-validated.
// AccessSecret is stored encrypted at rest (see auth.Cryptor).
type UserCredential struct {
	UserID       string
	Handle       string
	DisplayName  string
	AvatarURL    string
	AccessToken  SecretString
	AccessSecret SecretString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasToken reports whether both credential halves are present.
func (c *UserCredential) HasToken() bool {
	return c != nil && c.AccessToken.Value() != "" && c.AccessSecret.Value() != ""
}

// Session is a server-side login session resolved by the auth middleware.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Tweet is the normalized upstream representation of a single post, used by
// both the timeline and analytics read paths.
type Tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     int       `json:"likes"`
	Retweets  int       `json:"retweets"`
}

// EngagementStats is the aggregate computed for the analytics endpoint from
// the caller's recent posts.
type EngagementStats struct {
	TweetCount    int     `json:"tweetCount"`
	TotalLikes    int     `json:"totalLikes"`
	TotalRetweets int     `json:"totalRetweets"`
	AvgLikes      float64 `json:"avgLikes"`
	AvgRetweets   float64 `json:"avgRetweets"`
}

// ComputeEngagementStats aggregates a slice of tweets into EngagementStats.
func ComputeEngagementStats(tweets []Tweet) EngagementStats {
	stats := EngagementStats{TweetCount: len(tweets)}
	for _, t := range tweets {
		stats.TotalLikes += t.Likes
		stats.TotalRetweets += t.Retweets
	}
	if stats.TweetCount > 0 {
		stats.AvgLikes = float64(stats.TotalLikes) / float64(stats.TweetCount)
		stats.AvgRetweets = float64(stats.TotalRetweets) / float64(stats.TweetCount)
	}
	return stats
}

// QuotaSnapshot captures the upstream provider's own rate-limit headers as
// observed on the most recent call. The governor may use it to tighten its
// local window so we stop issuing calls the provider would reject anyway.
type QuotaSnapshot struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}
