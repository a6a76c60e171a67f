// Package handlers contains the HTTP handler implementations for the
// latebird API: posting (immediate and scheduled), schedule management, and
// the rate-governed read endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"latebird/internal/core"
	"latebird/internal/govern"
	"latebird/internal/types"
)

// maxScheduleAhead bounds how far in the future a post may be scheduled.
const maxScheduleAhead = 30 * 24 * time.Hour

// PostRepo defines the scheduled post data access used by the post handler.
type PostRepo interface {
	Create(ctx context.Context, post *types.ScheduledPost) error
	ListByUser(ctx context.Context, userID string) ([]*types.ScheduledPost, error)
	DeletePending(ctx context.Context, id string, userID string) (bool, error)
}

// PostCredRepo resolves the caller's stored credential for immediate posts.
type PostCredRepo interface {
	GetByUserID(ctx context.Context, userID string) (*types.UserCredential, error)
}

// Poster delivers an immediate post upstream.
type Poster interface {
	Post(ctx context.Context, cred *types.UserCredential, message string) (string, error)
}

// Governor admits or denies outbound calls per user and operation class.
type Governor interface {
	Check(userID string, class types.OpClass) govern.Decision
}

// PostTweetRequest is the request body for POST /api/tweet. A nil
// ScheduleTime means an immediate post.
type PostTweetRequest struct {
	Message      string     `json:"message"`
	ScheduleTime *time.Time `json:"scheduleTime,omitempty"`
}

// PostHandler serves post creation, schedule listing, and cancellation.
type PostHandler struct {
	posts    PostRepo
	creds    PostCredRepo
	poster   Poster
	governor Governor
	logger   *slog.Logger
	clock    types.Clock
}

// NewPostHandler creates a PostHandler with the provided dependencies.
func NewPostHandler(posts PostRepo, creds PostCredRepo, poster Poster, governor Governor, logger *slog.Logger, clock types.Clock) *PostHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &PostHandler{
		posts:    posts,
		creds:    creds,
		poster:   poster,
		governor: governor,
		logger:   logger,
		clock:    clock,
	}
}

// RegisterRoutes mounts the post routes on the authenticated API group.
func (h *PostHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tweet", h.HandlePostTweet)
	r.Get("/scheduled-tweets", h.HandleListScheduled)
	r.Delete("/scheduled-tweets/{id}", h.HandleCancelScheduled)
}

// HandlePostTweet creates an immediate or scheduled post. Immediate posts
// consult the governor and call upstream synchronously; scheduled posts only
// persist a pending record, delivery pacing belongs to the dispatcher.
func (h *PostHandler) HandlePostTweet(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	var req PostTweetRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validateRequest(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.ScheduleTime != nil {
		h.createScheduled(w, r, actor, &req)
		return
	}
	h.postNow(w, r, actor, req.Message)
}

func (h *PostHandler) validateRequest(req *PostTweetRequest) error {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return types.NewAppError(types.ErrCodeValidationMessageEmpty, "message must not be empty", nil)
	}
	if utf8.RuneCountInString(message) > types.MaxMessageLength {
		return types.NewAppError(types.ErrCodeValidationMessageTooLong, "message must not exceed 280 characters", nil)
	}
	req.Message = message

	if req.ScheduleTime != nil {
		now := h.clock.Now()
		if !req.ScheduleTime.After(now) {
			return types.NewAppError(types.ErrCodeValidationScheduleInPast, "scheduleTime must be in the future", nil)
		}
		if req.ScheduleTime.After(now.Add(maxScheduleAhead)) {
			return types.NewAppError(types.ErrCodeValidationScheduleTooFar, "scheduleTime must be within 30 days", nil)
		}
	}
	return nil
}

func (h *PostHandler) createScheduled(w http.ResponseWriter, r *http.Request, actor types.Actor, req *PostTweetRequest) {
	post := &types.ScheduledPost{
		UserID:       actor.UserID,
		Message:      req.Message,
		ScheduledFor: req.ScheduleTime.UTC(),
	}
	if err := h.posts.Create(r.Context(), post); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create scheduled post", "user_id", actor.UserID, "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalDB, "failed to schedule post", err))
		return
	}

	h.logger.InfoContext(r.Context(), "post scheduled",
		"user_id", actor.UserID, "post_id", post.ID, "scheduled_for", post.ScheduledFor)
	core.Success(w, r, http.StatusOK, core.Envelope{
		"scheduled":  true,
		"scheduleId": post.ID,
	})
}

func (h *PostHandler) postNow(w http.ResponseWriter, r *http.Request, actor types.Actor, message string) {
	decision := h.governor.Check(actor.UserID, types.ClassPost)
	observeGovernor(types.ClassPost, decision.Allowed)
	if !decision.Allowed {
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

	tweetID, err := h.poster.Post(r.Context(), cred, message)
	if err != nil {
		h.logger.WarnContext(r.Context(), "immediate post failed", "user_id", actor.UserID, "error", err)
		core.Error(w, r, err)
		return
	}

	core.Success(w, r, http.StatusOK, core.Envelope{
		"scheduled": false,
		"tweetId":   tweetID,
	})
}

// HandleListScheduled returns all of the caller's scheduled posts, target
// time ascending, including delivery status and last error.
func (h *PostHandler) HandleListScheduled(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	posts, err := h.posts.ListByUser(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalDB, "failed to list scheduled posts", err))
		return
	}
	if posts == nil {
		posts = []*types.ScheduledPost{}
	}

	core.Success(w, r, http.StatusOK, core.Envelope{"tweets": posts})
}

// HandleCancelScheduled deletes a pending scheduled post. Posts that are
// absent, owned by someone else, or already past pending all report 404; the
// conditional delete in the store is what makes a cancel racing the
// dispatcher safe.
func (h *PostHandler) HandleCancelScheduled(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")
	deleted, err := h.posts.DeletePending(r.Context(), id, actor.UserID)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel scheduled post", err))
		return
	}
	if !deleted {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundScheduledPost, "scheduled post not found or already processed", nil))
		return
	}

	h.logger.InfoContext(r.Context(), "scheduled post cancelled", "user_id", actor.UserID, "post_id", id)
	core.Success(w, r, http.StatusOK, nil)
}

// rateLimitError converts a governor denial into the 429 envelope, attaching
// the window reset (epoch seconds) and wait duration (seconds).
func rateLimitError(decision govern.Decision) *types.AppError {
	return types.NewAppError(types.ErrCodeRateLimit, "rate limit exceeded", nil).
		WithDetails(map[string]any{
			"resetTime":     decision.ResetAt.Unix(),
			"remainingTime": int(decision.Wait.Seconds()),
		})
}
