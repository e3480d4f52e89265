package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"jobfeed/internal/middleware"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"
	"jobfeed/internal/observability"
	"jobfeed/internal/repository"

	"gorm.io/gorm"
)

// ModerateInput is one admin action on a post.
type ModerateInput struct {
	PostID  uint   `json:"-"`
	ActorID uint   `json:"-"`
	Action  string `json:"action" validate:"required"`
	Notes   string `json:"notes" validate:"max=1000"`
}

// ModerationService provides the admin moderation state machine and its
// audit trail.
type ModerationService struct {
	posts      repository.PostRepository
	moderation repository.ModerationRepository
	identity   IdentityProvider
	events     EventPublisher
	now        func() time.Time
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	posts repository.PostRepository,
	moderation repository.ModerationRepository,
	identity IdentityProvider,
	events EventPublisher,
) *ModerationService {
	return &ModerationService{
		posts:      posts,
		moderation: moderation,
		identity:   identity,
		events:     events,
		now:        utcNow,
	}
}

func (s *ModerationService) requireAdmin(ctx context.Context, actorID uint) error {
	role, err := s.identity.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	return CanModerate(role)
}

// Moderate applies an action and records it. approve publishes (a deleted
// post stays deleted), reject archives from any state, feature and pin
// toggle their flags.
func (s *ModerationService) Moderate(ctx context.Context, in ModerateInput) (_ *models.Post, err error) {
	span, ctx := observability.NewSpan(ctx, "ModerationService.Moderate",
		observability.PostAttr(in.PostID), observability.ActorAttr(in.ActorID))
	defer span.Finish(&err)

	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	action, err := models.ParseModerationAction(in.Action)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, in.ActorID); err != nil {
		return nil, err
	}

	post, err := s.posts.Mutate(ctx, in.PostID, "moderate", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		now := s.now()
		from := post.Status
		to := from
		updates := map[string]any{
			"is_moderated": true,
			"moderated_by": in.ActorID,
			"moderated_at": now,
		}
		if in.Notes != "" {
			updates["moderation_notes"] = in.Notes
		}

		switch action {
		case models.ModerationApprove:
			if from != models.PostStatusDeleted {
				to = models.PostStatusPublished
			}
		case models.ModerationReject:
			to = models.PostStatusArchived
		case models.ModerationFeature:
			updates["is_featured"] = !post.IsFeatured
		case models.ModerationPin:
			updates["is_pinned"] = !post.IsPinned
		}
		if to != from {
			updates["status"] = to
			if to == models.PostStatusPublished {
				updates["published_at"] = now
			}
		}

		event := &models.ModerationEvent{
			PostID:     post.ID,
			Action:     action,
			ActorID:    in.ActorID,
			Notes:      in.Notes,
			FromStatus: from,
			ToStatus:   to,
		}
		if err := s.moderation.WithTx(tx).Record(ctx, event); err != nil {
			return nil, err
		}
		return updates, nil
	})
	if err != nil {
		return nil, postError(err, in.PostID)
	}

	observability.ModerationActions.WithLabelValues(string(action)).Inc()
	middleware.Logger.InfoContext(ctx, "post moderated",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("action", string(action)),
		slog.String("status", string(post.Status)))

	afterFeedChange(ctx, nil)
	publishEvent(ctx, s.events, notifications.FeedEvent{
		Type: notifications.EventPostModerated, PostID: post.ID, ActorID: in.ActorID, AuthorID: post.AuthorID,
		Data: map[string]any{"action": action, "status": post.Status},
	})
	return post, nil
}

// Queue lists posts for review, newest first. An empty status lists every
// non-deleted post.
func (s *ModerationService) Queue(ctx context.Context, actorID uint, status string, limit, offset int) ([]*models.Post, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	var statuses []models.PostStatus
	switch st := models.PostStatus(strings.ToLower(strings.TrimSpace(status))); st {
	case "":
		statuses = []models.PostStatus{models.PostStatusDraft, models.PostStatusPublished, models.PostStatusArchived}
	case models.PostStatusDraft, models.PostStatusPublished, models.PostStatusArchived, models.PostStatusDeleted:
		statuses = []models.PostStatus{st}
	default:
		return nil, models.NewValidationError("Invalid status: " + status)
	}

	limit, offset = normalizePage(limit, offset)
	return s.posts.List(ctx, repository.PostFilter{
		Statuses: statuses,
		Sort:     repository.SortRecent,
		Limit:    limit,
		Offset:   offset,
	})
}

// History returns the post's moderation audit trail, oldest first.
func (s *ModerationService) History(ctx context.Context, actorID, postID uint) ([]models.ModerationEvent, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, postError(err, postID)
	}
	return s.moderation.History(ctx, postID)
}
