package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"latebird/internal/cache"
	"latebird/internal/core"
	"latebird/internal/metrics"
	"latebird/internal/types"
)

// Stale-data notices. Every degraded response says why it is degraded so the
// frontend can surface it.
const (
	noticeFreshCache    = "showing recently fetched data"
	noticeRateLimited   = "showing cached data because you are rate limited"
	noticeUpstreamError = "showing cached data because of an upstream error"
)

// defaultReadLimit is how many tweets one upstream read requests.
const defaultReadLimit = 50

// TimelineReader fetches the caller's home timeline and recent own tweets.
type TimelineReader interface {
	Timeline(ctx context.Context, cred *types.UserCredential, limit int) ([]types.Tweet, *types.QuotaSnapshot, error)
	UserTweets(ctx context.Context, cred *types.UserCredential, limit int) ([]types.Tweet, *types.QuotaSnapshot, error)
}

// ReadCache is the response cache contract used by the read endpoints.
type ReadCache interface {
	Get(userID string, class types.OpClass) (cache.Result, bool)
	Put(userID string, class types.OpClass, payload any, quota *types.QuotaSnapshot) error
}

// QuotaObserver feeds provider quota snapshots back into the governor.
type QuotaObserver interface {
	Governor
	ObserveQuota(userID string, class types.OpClass, quota types.QuotaSnapshot)
}

// ReadHandler serves the timeline and analytics endpoints: governor-admitted,
// cache-backed reads that degrade to stale data instead of failing.
type ReadHandler struct {
	reader    TimelineReader
	cache     ReadCache
	governor  QuotaObserver
	creds     PostCredRepo
	freshness time.Duration
	logger    *slog.Logger
}

// NewReadHandler creates a ReadHandler. freshness is the window within which
// a cached payload is served without consulting the governor or upstream.
func NewReadHandler(reader TimelineReader, c ReadCache, governor QuotaObserver, creds PostCredRepo, freshness time.Duration, logger *slog.Logger) *ReadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadHandler{
		reader:    reader,
		cache:     c,
		governor:  governor,
		creds:     creds,
		freshness: freshness,
		logger:    logger,
	}
}

// RegisterRoutes mounts the read routes on the authenticated API group.
func (h *ReadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tweets", h.HandleTimeline)
	r.Get("/analytics", h.HandleAnalytics)
}

// HandleTimeline serves GET /api/tweets.
func (h *ReadHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	h.serveRead(w, r, types.ClassTimelineRead, "tweets",
		func(ctx context.Context, cred *types.UserCredential) (any, *types.QuotaSnapshot, error) {
			tweets, quota, err := h.reader.Timeline(ctx, cred, defaultReadLimit)
			if tweets == nil {
				tweets = []types.Tweet{}
			}
			return tweets, quota, err
		})
}

// HandleAnalytics serves GET /api/analytics: engagement aggregates over the
// caller's own recent tweets.
func (h *ReadHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	h.serveRead(w, r, types.ClassMetricsRead, "analytics",
		func(ctx context.Context, cred *types.UserCredential) (any, *types.QuotaSnapshot, error) {
			tweets, quota, err := h.reader.UserTweets(ctx, cred, defaultReadLimit)
			if err != nil {
				return nil, quota, err
			}
			return types.ComputeEngagementStats(tweets), quota, nil
		})
}

// serveRead implements the shared read policy: fresh cache short-circuits
// everything; a governor denial or upstream failure degrades to stale cache;
// a hard error surfaces only when there is nothing cached to fall back on.
func (h *ReadHandler) serveRead(
	w http.ResponseWriter,
	r *http.Request,
	class types.OpClass,
	payloadKey string,
	fetch func(ctx context.Context, cred *types.UserCredential) (any, *types.QuotaSnapshot, error),
) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	cached, hasCache := h.cache.Get(actor.UserID, class)
	if hasCache && cached.Age < h.freshness {
		metrics.ObserveCacheServe(string(class), "fresh")
		core.Success(w, r, http.StatusOK, core.Envelope{
			payloadKey: cached.Payload,
			"cached":   true,
			"notice":   noticeFreshCache,
		})
		return
	}

	decision := h.governor.Check(actor.UserID, class)
	observeGovernor(class, decision.Allowed)
	if !decision.Allowed {
		if hasCache {
			metrics.ObserveCacheServe(string(class), "stale")
			core.Success(w, r, http.StatusOK, core.Envelope{
				payloadKey:      cached.Payload,
				"cached":        true,
				"notice":        noticeRateLimited,
				"resetTime":     decision.ResetAt.Unix(),
				"remainingTime": int(decision.Wait.Seconds()),
			})
			return
		}
		metrics.ObserveCacheServe(string(class), "miss")
		core.Error(w, r, rateLimitError(decision))
		return
	}

	cred, err := h.creds.GetByUserID(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalDB, "failed to load credentials", err))
		return
	}
	if !cred.HasToken() {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthNoCredentials, "no stored credentials", nil))
		return
	}

	payload, quota, err := fetch(r.Context(), cred)
	if err != nil {
		h.logger.WarnContext(r.Context(), "upstream read failed",
			"user_id", actor.UserID, "class", string(class), "error", err)
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			metrics.ObserveUpstreamError(string(appErr.Code))
		}
		if hasCache {
			metrics.ObserveCacheServe(string(class), "stale")
			core.Success(w, r, http.StatusOK, core.Envelope{
				payloadKey: cached.Payload,
				"cached":   true,
				"notice":   noticeForError(err),
			})
			return
		}
		metrics.ObserveCacheServe(string(class), "miss")
		core.Error(w, r, err)
		return
	}

	if quota != nil {
		h.governor.ObserveQuota(actor.UserID, class, *quota)
	}
	if err := h.cache.Put(actor.UserID, class, payload, quota); err != nil {
		h.logger.WarnContext(r.Context(), "failed to cache read payload",
			"user_id", actor.UserID, "class", string(class), "error", err)
	}

	metrics.ObserveCacheServe(string(class), "fetch")
	core.Success(w, r, http.StatusOK, core.Envelope{
		payloadKey: payload,
		"cached":   false,
	})
}

// noticeForError distinguishes quota exhaustion from other upstream failures
// in the stale-data notice.
func noticeForError(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamQuota {
		return noticeRateLimited
	}
	return noticeUpstreamError
}

// observeGovernor records a governor decision in the metrics.
func observeGovernor(class types.OpClass, allowed bool) {
	metrics.ObserveGovernorDecision(string(class), allowed)
}
