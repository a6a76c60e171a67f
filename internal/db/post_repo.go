package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"latebird/internal/types"
)

// ScheduledPostRepository provides data access for the scheduled_posts table.
//
// Schema:
//
//	CREATE TABLE scheduled_posts (
//	    id            TEXT PRIMARY KEY,
//	    user_id       TEXT NOT NULL REFERENCES user_credentials(user_id),
//	    message       TEXT NOT NULL,
//	    scheduled_for TIMESTAMPTZ NOT NULL,
//	    status        TEXT NOT NULL DEFAULT 'pending',
//	    posted_at     TIMESTAMPTZ,
//	    last_error    TEXT,
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX idx_scheduled_posts_due ON scheduled_posts (status, scheduled_for);
//	CREATE INDEX idx_scheduled_posts_user ON scheduled_posts (user_id, scheduled_for);
type ScheduledPostRepository struct {
	db DBTX
}

// NewScheduledPostRepository creates a repository backed by the given
// database connection (pool or transaction).
func NewScheduledPostRepository(db DBTX) *ScheduledPostRepository {
	return &ScheduledPostRepository{db: db}
}

// postColumns is the standard column set for scheduled post queries.
const postColumns = `id, user_id, message, scheduled_for, status, posted_at, last_error, created_at, updated_at`

// scanPost scans a single scheduled post row. Column order must match postColumns.
func scanPost(row pgx.Row) (*types.ScheduledPost, error) {
	var p types.ScheduledPost
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Message,
		&p.ScheduledFor,
		&p.Status,
		&p.PostedAt,
		&p.LastError,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// collectPosts drains a row set into a slice.
func collectPosts(rows pgx.Rows) ([]*types.ScheduledPost, error) {
	defer rows.Close()
	var posts []*types.ScheduledPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Create inserts a new pending post. The ID is generated here ("post_" +
// UUID) and written back to the struct along with the creation timestamps.
func (r *ScheduledPostRepository) Create(ctx context.Context, post *types.ScheduledPost) error {
	post.ID = "post_" + uuid.NewString()
	post.Status = types.PostStatusPending
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO scheduled_posts (id, user_id, message, scheduled_for, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.UserID, post.Message, post.ScheduledFor, post.Status, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting scheduled post: %w", err)
	}
	return nil
}

// ListByUser returns all of a user's scheduled posts ordered by target time
// ascending, regardless of status.
func (r *ScheduledPostRepository) ListByUser(ctx context.Context, userID string) ([]*types.ScheduledPost, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+` FROM scheduled_posts
		WHERE user_id = $1
		ORDER BY scheduled_for ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled posts: %w", err)
	}
	return collectPosts(rows)
}

// ListDue returns pending posts whose target time has passed, oldest first,
// capped at limit.
func (r *ScheduledPostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledPost, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+` FROM scheduled_posts
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
		LIMIT $3`,
		types.PostStatusPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing due posts: %w", err)
	}
	return collectPosts(rows)
}

// ListFailedDue returns failed posts whose original target time has passed.
// A failed post is never retried before its originally intended time.
func (r *ScheduledPostRepository) ListFailedDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledPost, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+` FROM scheduled_posts
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
		LIMIT $3`,
		types.PostStatusFailed, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing failed posts: %w", err)
	}
	return collectPosts(rows)
}

// MarkPosted transitions a post to the terminal posted status, stamping the
// delivery time and clearing any previous error.
//
// The WHERE clause makes the update a no-op when the record was deleted by a
// racing cancellation or already reached the terminal status; neither caller
// treats that as an error.
func (r *ScheduledPostRepository) MarkPosted(ctx context.Context, id string, postedAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE scheduled_posts
		SET status = $2, posted_at = $3, last_error = NULL, updated_at = $3
		WHERE id = $1 AND status <> $2`,
		id, types.PostStatusPosted, postedAt,
	)
	if err != nil {
		return fmt.Errorf("marking post %s posted: %w", id, err)
	}
	return nil
}

// MarkFailed transitions a post to failed, replacing the stored error
// message. Like MarkPosted it is a no-op for deleted or already-posted
// records.
func (r *ScheduledPostRepository) MarkFailed(ctx context.Context, id string, errMsg string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE scheduled_posts
		SET status = $2, last_error = $3, updated_at = $4
		WHERE id = $1 AND status <> $5`,
		id, types.PostStatusFailed, errMsg, now, types.PostStatusPosted,
	)
	if err != nil {
		return fmt.Errorf("marking post %s failed: %w", id, err)
	}
	return nil
}

// DeletePending removes a post iff it still belongs to the user and is still
// pending. Returns true when a row was deleted. The status predicate is what
// resolves the cancel-vs-dispatch race: once the dispatcher transitions the
// record, the delete matches nothing.
func (r *ScheduledPostRepository) DeletePending(ctx context.Context, id string, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM scheduled_posts
		WHERE id = $1 AND user_id = $2 AND status = $3`,
		id, userID, types.PostStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("deleting scheduled post %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
