// Package dispatcher delivers scheduled posts when their target time arrives.
// It runs two periodic sweeps: a frequent one over pending posts that have
// come due, and a slower one that retries previously failed deliveries.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"latebird/internal/metrics"
	"latebird/internal/types"
)

// PostStore is the subset of the scheduled post repository the dispatcher
// depends on.
type PostStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledPost, error)
	ListFailedDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledPost, error)
	MarkPosted(ctx context.Context, id string, postedAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, now time.Time) error
}

// CredentialStore looks up the stored credential for a post's owner.
type CredentialStore interface {
	GetByUserID(ctx context.Context, userID string) (*types.UserCredential, error)
}

// Poster delivers one message upstream on behalf of the credential's owner.
type Poster interface {
	Post(ctx context.Context, cred *types.UserCredential, message string) (string, error)
}

// Options configures sweep behavior.
type Options struct {
	// PerPostTimeout bounds each individual delivery attempt.
	PerPostTimeout time.Duration
	// Concurrency caps simultaneous deliveries within one sweep.
	Concurrency int
	// BatchLimit caps how many records one sweep picks up.
	BatchLimit int
	Logger     *slog.Logger
	Clock      types.Clock
}

// Dispatcher owns all status transitions of scheduled posts after creation.
// Every delivery attempt ends in exactly one transition: posted on success,
// failed with the error message otherwise. A failure never aborts the rest of
// the sweep.
type Dispatcher struct {
	posts          PostStore
	creds          CredentialStore
	poster         Poster
	logger         *slog.Logger
	clock          types.Clock
	perPostTimeout time.Duration
	concurrency    int
	batchLimit     int
}

// New creates a Dispatcher. Zero option fields get conservative defaults.
func New(posts PostStore, creds CredentialStore, poster Poster, opts Options) *Dispatcher {
	if opts.PerPostTimeout <= 0 {
		opts.PerPostTimeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = types.RealClock{}
	}
	return &Dispatcher{
		posts:          posts,
		creds:          creds,
		poster:         poster,
		logger:         opts.Logger,
		clock:          opts.Clock,
		perPostTimeout: opts.PerPostTimeout,
		concurrency:    opts.Concurrency,
		batchLimit:     opts.BatchLimit,
	}
}

// SweepDue delivers pending posts whose target time has passed.
func (d *Dispatcher) SweepDue(ctx context.Context) error {
	return d.sweep(ctx, "due", d.posts.ListDue)
}

// SweepRetries re-attempts posts that previously failed. A retried record
// goes back through the same transitions: posted clears the stored error,
// another failure replaces it.
func (d *Dispatcher) SweepRetries(ctx context.Context) error {
	return d.sweep(ctx, "retry", d.posts.ListFailedDue)
}

func (d *Dispatcher) sweep(ctx context.Context, name string, list func(context.Context, time.Time, int) ([]*types.ScheduledPost, error)) error {
	started := d.clock.Now()
	batch, err := list(ctx, started, d.batchLimit)
	if err != nil {
		return fmt.Errorf("listing posts for %s sweep: %w", name, err)
	}
	if len(batch) == 0 {
		return nil
	}

	d.logger.InfoContext(ctx, "sweep started", "sweep", name, "count", len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, post := range batch {
		post := post
		g.Go(func() error {
			d.dispatchOne(gctx, name, post)
			return nil
		})
	}
	_ = g.Wait()

	metrics.ObserveSweep(name, time.Since(started))
	return nil
}

// dispatchOne attempts delivery of a single post and records the outcome.
// Errors are contained here; they become a failed status, never a sweep abort.
func (d *Dispatcher) dispatchOne(ctx context.Context, sweep string, post *types.ScheduledPost) {
	ctx, cancel := context.WithTimeout(ctx, d.perPostTimeout)
	defer cancel()

	logger := d.logger.With("post_id", post.ID, "user_id", post.UserID, "sweep", sweep)

	cred, err := d.creds.GetByUserID(ctx, post.UserID)
	if err != nil {
		d.fail(ctx, logger, sweep, post, fmt.Errorf("loading credentials: %w", err))
		return
	}
	if !cred.HasToken() {
		d.fail(ctx, logger, sweep, post, fmt.Errorf("no stored credentials for user"))
		return
	}

	tweetID, err := d.poster.Post(ctx, cred, post.Message)
	if err != nil {
		d.fail(ctx, logger, sweep, post, err)
		return
	}

	if err := d.posts.MarkPosted(ctx, post.ID, d.clock.Now()); err != nil {
		logger.ErrorContext(ctx, "failed to mark post delivered", "error", err)
		metrics.ObserveDispatch(sweep, "skipped")
		return
	}

	logger.InfoContext(ctx, "post delivered", "tweet_id", tweetID)
	metrics.ObserveDispatch(sweep, "posted")
}

func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, sweep string, post *types.ScheduledPost, cause error) {
	logger.WarnContext(ctx, "post delivery failed", "error", cause)
	metrics.ObserveDispatch(sweep, "failed")

	if err := d.posts.MarkFailed(ctx, post.ID, cause.Error(), d.clock.Now()); err != nil {
		logger.ErrorContext(ctx, "failed to record delivery failure", "error", err)
	}
}
