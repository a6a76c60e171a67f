package types

// PostStatus is the lifecycle state of a scheduled post.
//
// Transitions: pending -> posted (terminal), pending -> failed,
// failed -> posted (retry success), failed -> failed (retry failure).
// Cancellation deletes a pending record; it is not a status transition.
type PostStatus string

const (
	PostStatusPending PostStatus = "pending"
	PostStatusPosted  PostStatus = "posted"
	PostStatusFailed  PostStatus = "failed"
)

// Valid reports whether s is a member of the closed status set.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusPosted, PostStatusFailed:
		return true
	}
	return false
}

// OpClass identifies an outbound operation class for rate governance and
// response caching. The set is closed; the governor denies unknown classes.
type OpClass string

const (
	ClassPost         OpClass = "post"
	ClassTimelineRead OpClass = "timeline_read"
	ClassMetricsRead  OpClass = "metrics_read"
)

// Valid reports whether c is a member of the closed class set.
func (c OpClass) Valid() bool {
	switch c {
	case ClassPost, ClassTimelineRead, ClassMetricsRead:
		return true
	}
	return false
}
