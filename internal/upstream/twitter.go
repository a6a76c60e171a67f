package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"latebird/internal/types"
)

// callResult is the breaker-wrapped outcome of one provider call. Exactly one
// of tweetID/tweets is populated depending on the operation.
type callResult struct {
	tweetID string
	tweets  []twitter.Tweet
	resp    *http.Response
}

// TwitterClient implements Client against the Twitter v1.1 API using OAuth1
// delegated credentials (consumer pair from config, token pair per user).
//
// Resilience: a process-wide smoothing limiter caps the outbound call rate
// across all users, and a shared circuit breaker fails fast once the provider
// shows consecutive failures. Per-call cancellation is honored while waiting
// on the limiter; the underlying HTTP exchange is bounded by the client
// timeout.
type TwitterClient struct {
	oauthConfig *oauth1.Config
	timeout     time.Duration
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[callResult]
	logger      *slog.Logger
}

// Options tunes the TwitterClient beyond the required consumer credentials.
type Options struct {
	Timeout        time.Duration
	SmoothingRPS   float64
	SmoothingBurst int
	Logger         *slog.Logger
}

// NewTwitterClient creates a TwitterClient with the given application
// consumer credentials.
func NewTwitterClient(consumerKey, consumerSecret string, opts Options) *TwitterClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.SmoothingRPS <= 0 {
		opts.SmoothingRPS = 2
	}
	if opts.SmoothingBurst <= 0 {
		opts.SmoothingBurst = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[callResult](gobreaker.Settings{
		Name:        "twitter",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &TwitterClient{
		oauthConfig: oauth1.NewConfig(consumerKey, consumerSecret),
		timeout:     opts.Timeout,
		limiter:     rate.NewLimiter(rate.Limit(opts.SmoothingRPS), opts.SmoothingBurst),
		breaker:     breaker,
		logger:      opts.Logger,
	}
}

// userClient builds a per-user API client signing with the stored token pair.
// Construction is cheap; no connection state is held per user.
func (c *TwitterClient) userClient(cred *types.UserCredential) *twitter.Client {
	token := oauth1.NewToken(cred.AccessToken.Value(), cred.AccessSecret.Value())
	httpClient := c.oauthConfig.Client(oauth1.NoContext, token)
	httpClient.Timeout = c.timeout
	return twitter.NewClient(httpClient)
}

// Post implements Client.
func (c *TwitterClient) Post(ctx context.Context, cred *types.UserCredential, message string) (string, error) {
	res, err := c.execute(ctx, cred, func(api *twitter.Client) (callResult, error) {
		tweet, resp, err := api.Statuses.Update(message, nil)
		if err != nil {
			return callResult{resp: resp}, err
		}
		return callResult{tweetID: tweet.IDStr, resp: resp}, nil
	})
	if err != nil {
		return "", err
	}
	return res.tweetID, nil
}

// Timeline implements Client.
func (c *TwitterClient) Timeline(ctx context.Context, cred *types.UserCredential, limit int) ([]types.Tweet, *types.QuotaSnapshot, error) {
	res, err := c.execute(ctx, cred, func(api *twitter.Client) (callResult, error) {
		tweets, resp, err := api.Timelines.HomeTimeline(&twitter.HomeTimelineParams{
			Count:     limit,
			TweetMode: "extended",
		})
		return callResult{tweets: tweets, resp: resp}, err
	})
	if err != nil {
		return nil, quotaFromResponse(res.resp), err
	}
	return normalizeTweets(res.tweets), quotaFromResponse(res.resp), nil
}

// UserTweets implements Client.
func (c *TwitterClient) UserTweets(ctx context.Context, cred *types.UserCredential, limit int) ([]types.Tweet, *types.QuotaSnapshot, error) {
	res, err := c.execute(ctx, cred, func(api *twitter.Client) (callResult, error) {
		tweets, resp, err := api.Timelines.UserTimeline(&twitter.UserTimelineParams{
			Count:     limit,
			TweetMode: "extended",
		})
		return callResult{tweets: tweets, resp: resp}, err
	})
	if err != nil {
		return nil, quotaFromResponse(res.resp), err
	}
	return normalizeTweets(res.tweets), quotaFromResponse(res.resp), nil
}

// execute runs one provider call through the credential precondition check,
// the smoothing limiter, and the circuit breaker, then maps the error.
func (c *TwitterClient) execute(
	ctx context.Context,
	cred *types.UserCredential,
	call func(api *twitter.Client) (callResult, error),
) (callResult, error) {
	if !cred.HasToken() {
		return callResult{}, types.NewAppError(
			types.ErrCodeAuthNoCredentials,
			"no stored credentials for this account",
			nil,
		)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return callResult{}, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"request cancelled while waiting for outbound slot",
			err,
		)
	}

	api := c.userClient(cred)
	res, err := c.breaker.Execute(func() (callResult, error) {
		return call(api)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "upstream call failed",
			"user_id", cred.UserID,
			"error", err,
		)
		return res, mapProviderError(err, res.resp)
	}
	return res, nil
}

// twitterRateLimitCode is the v1.1 API error code for "Rate limit exceeded".
const twitterRateLimitCode = 88

// mapProviderError translates transport, breaker, and provider errors into
// the AppError taxonomy.
func mapProviderError(err error, resp *http.Response) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"provider temporarily unavailable (circuit open)",
			err,
		)
	}

	var apiErr twitter.APIError
	if errors.As(err, &apiErr) {
		for _, detail := range apiErr.Errors {
			if detail.Code == twitterRateLimitCode {
				return types.NewAppError(
					types.ErrCodeUpstreamQuota,
					"provider rate limit exhausted",
					err,
				)
			}
		}
	}
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamQuota, "provider rate limit exhausted", err)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return types.NewAppError(types.ErrCodeUpstreamRejected, "provider rejected the request", err)
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "provider call failed", err)
}

// normalizeTweets maps provider tweet structs to the domain representation.
func normalizeTweets(raw []twitter.Tweet) []types.Tweet {
	out := make([]types.Tweet, 0, len(raw))
	for _, t := range raw {
		text := t.FullText
		if text == "" {
			text = t.Text
		}
		createdAt, err := t.CreatedAtTime()
		if err != nil {
			createdAt = time.Time{}
		}
		out = append(out, types.Tweet{
			ID:        t.IDStr,
			Text:      text,
			CreatedAt: createdAt.UTC(),
			Likes:     t.FavoriteCount,
			Retweets:  t.RetweetCount,
		})
	}
	return out
}
