package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"jobfeed/internal/middleware"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"
	"jobfeed/internal/observability"
	"jobfeed/internal/repository"

	"gorm.io/gorm"
)

// DefaultSharePlatform is recorded when a share names no platform.
const DefaultSharePlatform = "internal"

// EngagementService applies likes, comments, replies, shares and views.
// Membership rows and the counters they back are written in the same
// versioned post mutation.
type EngagementService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	identity IdentityProvider
	events   EventPublisher
	now      func() time.Time
}

// AddCommentInput is a top-level comment on a post.
type AddCommentInput struct {
	PostID  uint   `json:"-"`
	ActorID uint   `json:"-"`
	Content string `json:"content" validate:"required,max=500"`
}

// AddReplyInput answers an existing top-level comment.
type AddReplyInput struct {
	PostID    uint   `json:"-"`
	CommentID uint   `json:"-"`
	ActorID   uint   `json:"-"`
	Content   string `json:"content" validate:"required,max=300"`
}

// EditCommentInput replaces the content of the actor's own comment or reply.
type EditCommentInput struct {
	PostID    uint   `json:"-"`
	CommentID uint   `json:"-"`
	ActorID   uint   `json:"-"`
	Content   string `json:"content" validate:"required,max=500"`
}

// ShareInput records a share; Platform is optional.
type ShareInput struct {
	PostID   uint   `json:"-"`
	ActorID  uint   `json:"-"`
	Platform string `json:"platform" validate:"max=50"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// NewEngagementService wires the engagement operations to their repositories.
func NewEngagementService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	identity IdentityProvider,
	events EventPublisher,
) *EngagementService {
	return &EngagementService{
		posts:    posts,
		comments: comments,
		identity: identity,
		events:   events,
		now:      utcNow,
	}
}

// requirePublished rejects engagement on posts that are not live.
func requirePublished(post *models.Post) error {
	if !post.IsPublished() {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// ToggleLike likes the post, or unlikes it when the actor already does.
func (s *EngagementService) ToggleLike(ctx context.Context, postID, actorID uint) (_ *LikeResult, err error) {
	span, ctx := observability.NewSpan(ctx, "EngagementService.ToggleLike",
		observability.PostAttr(postID), observability.ActorAttr(actorID))
	defer span.Finish(&err)

	var result LikeResult
	post, err := s.posts.Mutate(ctx, postID, "toggle_like", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		result = LikeResult{}
		if err := requirePublished(post); err != nil {
			return nil, err
		}
		repo := s.posts.WithTx(tx)
		removed, err := repo.RemoveLike(ctx, postID, actorID)
		if err != nil {
			return nil, err
		}
		if removed {
			result.Likes = max(post.Engagement.Likes-1, 0)
		} else {
			if err := repo.AddLike(ctx, postID, actorID); err != nil {
				return nil, err
			}
			result.Liked = true
			result.Likes = post.Engagement.Likes + 1
		}
		return map[string]any{"engagement_likes": result.Likes}, nil
	})
	if err != nil {
		return nil, postError(err, postID)
	}

	if result.Liked {
		observability.EngagementActions.WithLabelValues("like").Inc()
		publishEvent(ctx, s.events, notifications.FeedEvent{
			Type: notifications.EventPostLiked, PostID: postID, ActorID: actorID, AuthorID: post.AuthorID,
			Data: map[string]any{"likes": result.Likes},
		})
	} else {
		observability.EngagementActions.WithLabelValues("unlike").Inc()
	}
	afterFeedChange(ctx, post)
	return &result, nil
}

// LikedBy lists the actors who like the post, oldest like first.
func (s *EngagementService) LikedBy(ctx context.Context, postID uint) ([]uint, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, postError(err, postID)
	}
	if !canRead(post, nil) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return s.posts.LikedBy(ctx, postID)
}

// AddComment appends a top-level comment after the audience gate passes.
func (s *EngagementService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	role, err := s.identity.Resolve(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	var comment *models.Comment
	post, err := s.posts.Mutate(ctx, in.PostID, "add_comment", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		comment = nil
		if err := requirePublished(post); err != nil {
			return nil, err
		}
		if err := CanComment(post.CommentSettings, role); err != nil {
			return nil, err
		}
		c := &models.Comment{PostID: post.ID, AuthorID: in.ActorID, Content: in.Content}
		if err := s.comments.WithTx(tx).Create(ctx, c); err != nil {
			return nil, err
		}
		comment = c
		return map[string]any{"engagement_comments": post.Engagement.Comments + 1}, nil
	})
	if err != nil {
		return nil, postError(err, in.PostID)
	}

	comment.LikedBy = []uint{}
	observability.EngagementActions.WithLabelValues("comment").Inc()
	afterFeedChange(ctx, post)
	publishEvent(ctx, s.events, notifications.FeedEvent{
		Type: notifications.EventPostCommented, PostID: post.ID, ActorID: in.ActorID, AuthorID: post.AuthorID,
		Data: map[string]any{"comment_id": comment.ID},
	})
	return comment, nil
}

// AddReply appends a reply under a top-level comment of the same post.
func (s *EngagementService) AddReply(ctx context.Context, in AddReplyInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var reply *models.Comment
	post, err := s.posts.Mutate(ctx, in.PostID, "add_reply", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		reply = nil
		if err := requirePublished(post); err != nil {
			return nil, err
		}
		comments := s.comments.WithTx(tx)
		parent, err := parentComment(ctx, comments, post.ID, in.CommentID)
		if err != nil {
			return nil, err
		}
		r := &models.Comment{PostID: post.ID, ParentID: &parent.ID, AuthorID: in.ActorID, Content: in.Content}
		if err := comments.Create(ctx, r); err != nil {
			return nil, err
		}
		reply = r
		return map[string]any{"engagement_comments": post.Engagement.Comments + 1}, nil
	})
	if err != nil {
		return nil, postError(err, in.PostID)
	}

	reply.LikedBy = []uint{}
	observability.EngagementActions.WithLabelValues("reply").Inc()
	afterFeedChange(ctx, post)
	publishEvent(ctx, s.events, notifications.FeedEvent{
		Type: notifications.EventPostCommented, PostID: post.ID, ActorID: in.ActorID, AuthorID: post.AuthorID,
		Data: map[string]any{"comment_id": in.CommentID, "reply_id": reply.ID},
	})
	return reply, nil
}

// parentComment loads a top-level comment of postID. Replies and comments
// of other posts are reported as missing.
func parentComment(ctx context.Context, comments repository.CommentRepository, postID, commentID uint) (*models.Comment, error) {
	c, err := comments.GetByID(ctx, commentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Comment", commentID)
		}
		return nil, err
	}
	if c.PostID != postID || c.IsReply() {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return c, nil
}

// entryOf loads a comment or reply that belongs to postID.
func entryOf(ctx context.Context, comments repository.CommentRepository, postID, commentID uint) (*models.Comment, error) {
	c, err := comments.GetByID(ctx, commentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Comment", commentID)
		}
		return nil, err
	}
	if c.PostID != postID {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return c, nil
}

// Share records a share and returns the new share count. Shares are not
// de-duplicated.
func (s *EngagementService) Share(ctx context.Context, in ShareInput) (int, error) {
	in.Platform = strings.TrimSpace(in.Platform)
	if in.Platform == "" {
		in.Platform = DefaultSharePlatform
	}
	if err := validateInput(in); err != nil {
		return 0, err
	}

	var shares int
	post, err := s.posts.Mutate(ctx, in.PostID, "share", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		if err := requirePublished(post); err != nil {
			return nil, err
		}
		if err := s.posts.WithTx(tx).AddShare(ctx, &models.PostShare{
			PostID:   post.ID,
			ActorID:  in.ActorID,
			Platform: in.Platform,
			SharedAt: s.now(),
		}); err != nil {
			return nil, err
		}
		shares = post.Engagement.Shares + 1
		return map[string]any{"engagement_shares": shares}, nil
	})
	if err != nil {
		return 0, postError(err, in.PostID)
	}

	observability.EngagementActions.WithLabelValues("share").Inc()
	afterFeedChange(ctx, post)
	return shares, nil
}

// RecordView counts a view and reports whether it was stored. It never
// fails; problems are only logged.
func (s *EngagementService) RecordView(ctx context.Context, postID uint) bool {
	if err := s.posts.IncrementCounter(ctx, postID, repository.CounterViews); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record view",
			slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		return false
	}
	observability.EngagementActions.WithLabelValues("view").Inc()
	return true
}

// RecordClick counts a click-through on a published post.
func (s *EngagementService) RecordClick(ctx context.Context, postID uint) error {
	if err := s.posts.IncrementCounter(ctx, postID, repository.CounterClicks); err != nil {
		return postError(err, postID)
	}
	observability.EngagementActions.WithLabelValues("click").Inc()
	return nil
}

// ToggleCommentLike flips the actor's like on a comment or reply.
func (s *EngagementService) ToggleCommentLike(ctx context.Context, postID, commentID, actorID uint) (*LikeResult, error) {
	var result LikeResult
	_, err := s.posts.Mutate(ctx, postID, "toggle_comment_like", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		result = LikeResult{}
		if err := requirePublished(post); err != nil {
			return nil, err
		}
		comments := s.comments.WithTx(tx)
		if _, err := entryOf(ctx, comments, post.ID, commentID); err != nil {
			return nil, err
		}
		liked, likes, err := comments.ToggleLike(ctx, commentID, actorID)
		if err != nil {
			return nil, err
		}
		result = LikeResult{Liked: liked, Likes: likes}
		return nil, nil
	})
	if err != nil {
		return nil, postError(err, postID)
	}
	observability.EngagementActions.WithLabelValues("comment_like").Inc()
	return &result, nil
}

// EditComment rewrites the content of the actor's own comment or reply.
func (s *EngagementService) EditComment(ctx context.Context, in EditCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var edited *models.Comment
	_, err := s.posts.Mutate(ctx, in.PostID, "edit_comment", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		edited = nil
		if err := requirePublished(post); err != nil {
			return nil, err
		}
		comments := s.comments.WithTx(tx)
		c, err := entryOf(ctx, comments, post.ID, in.CommentID)
		if err != nil {
			return nil, err
		}
		if c.AuthorID != in.ActorID {
			return nil, models.NewForbiddenError(models.ReasonNotOwner, "You can only edit your own comments")
		}
		if c.IsReply() && utf8.RuneCountInString(in.Content) > models.MaxReplyLen {
			return nil, models.NewValidationError("content too long (max 300 characters)")
		}
		now := s.now()
		c.Content = in.Content
		c.IsEdited = true
		c.EditedAt = &now
		if err := comments.UpdateContent(ctx, c); err != nil {
			return nil, err
		}
		edited = c
		return nil, nil
	})
	if err != nil {
		return nil, postError(err, in.PostID)
	}
	return edited, nil
}

// ListComments returns the post's discussion as a two-level tree in
// insertion order.
func (s *EngagementService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, postError(err, postID)
	}
	if !canRead(post, nil) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	rows, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return buildCommentTree(rows), nil
}

func buildCommentTree(rows []*models.Comment) []*models.Comment {
	top := make([]*models.Comment, 0, len(rows))
	byID := make(map[uint]*models.Comment, len(rows))
	for _, c := range rows {
		if !c.IsReply() {
			c.Replies = []*models.Comment{}
			byID[c.ID] = c
			top = append(top, c)
		}
	}
	for _, c := range rows {
		if c.IsReply() {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, c)
			}
		}
	}
	return top
}
