package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"jobfeed/internal/middleware"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"
	"jobfeed/internal/observability"
	"jobfeed/internal/repository"
	"jobfeed/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Pagination bounds shared by every listing.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ViewRecorder counts a view of a published post and reports whether it
// was stored. EngagementService implements it.
type ViewRecorder interface {
	RecordView(ctx context.Context, postID uint) bool
}

type PostService struct {
	posts    repository.PostRepository
	accounts repository.AccountRepository
	identity IdentityProvider
	blobs    BlobStore
	events   EventPublisher
	views    ViewRecorder
	now      func() time.Time
}

type CreatePostInput struct {
	ActorID           uint                    `json:"-"`
	Title             string                  `json:"title" validate:"required,max=200"`
	Body              string                  `json:"body" validate:"required,max=2000"`
	PostType          models.PostType         `json:"post_type" validate:"omitempty,oneof=job_announcement company_update industry_news career_tips event_announcement general"`
	Category          string                  `json:"category" validate:"max=100"`
	Tags              []string                `json:"tags" validate:"max=20,dive,required,max=50"`
	Visibility        models.Visibility       `json:"visibility" validate:"omitempty,oneof=public followers_only private"`
	ScheduledAt       *time.Time              `json:"scheduled_at"`
	Draft             bool                    `json:"draft"`
	CommentSettings   *models.CommentSettings `json:"comment_settings"`
	RelatedPosts      []uint                  `json:"related_posts" validate:"max=50"`
	RelatedJobs       []string                `json:"related_jobs" validate:"max=50,dive,max=100"`
	AuthorDisplayName string                  `json:"author_display_name" validate:"max=200"`
	AuthorLogoURL     string                  `json:"author_logo_url" validate:"max=500"`
	Media             []storage.Upload        `json:"-"`
}

// UpdatePostInput is a partial patch: nil fields are left untouched.
type UpdatePostInput struct {
	ActorID         uint                    `json:"-"`
	PostID          uint                    `json:"-"`
	Title           *string                 `json:"title" validate:"omitnil,min=1,max=200"`
	Body            *string                 `json:"body" validate:"omitnil,min=1,max=2000"`
	PostType        *models.PostType        `json:"post_type" validate:"omitnil,oneof=job_announcement company_update industry_news career_tips event_announcement general"`
	Category        *string                 `json:"category" validate:"omitnil,max=100"`
	Tags            []string                `json:"tags" validate:"omitnil,max=20,dive,required,max=50"`
	Visibility      *models.Visibility      `json:"visibility" validate:"omitnil,oneof=public followers_only private"`
	ScheduledAt     *time.Time              `json:"scheduled_at"`
	CommentSettings *models.CommentSettings `json:"comment_settings"`
	RelatedPosts    []uint                  `json:"related_posts" validate:"omitnil,max=50"`
	RelatedJobs     []string                `json:"related_jobs" validate:"omitnil,max=50,dive,max=100"`
	RemoveMedia     []string                `json:"remove_media"`
	Media           []storage.Upload        `json:"-"`
}

type ListPostsInput struct {
	PostType models.PostType
	Category string
	AuthorID uint
	Tag      string
	Featured *bool
	Sort     string
	Limit    int
	Offset   int
	// ActorID marks Liked on the results when non-zero.
	ActorID uint
}

func NewPostService(
	posts repository.PostRepository,
	accounts repository.AccountRepository,
	identity IdentityProvider,
	blobs BlobStore,
	events EventPublisher,
	views ViewRecorder,
) *PostService {
	return &PostService{
		posts:    posts,
		accounts: accounts,
		identity: identity,
		blobs:    blobs,
		events:   events,
		views:    views,
		now:      utcNow,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (_ *models.Post, err error) {
	span, ctx := observability.NewSpan(ctx, "PostService.CreatePost")
	defer span.Finish(&err)

	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.Category = strings.TrimSpace(in.Category)
	in.Tags = cleanTags(in.Tags)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	role, err := s.identity.Resolve(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if err := CanAuthor(role); err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:        in.ActorID,
		AuthorRole:      role,
		Title:           in.Title,
		Body:            in.Body,
		PostType:        in.PostType,
		Category:        in.Category,
		Tags:            in.Tags,
		Visibility:      in.Visibility,
		CommentSettings: models.DefaultCommentSettings(),
		RelatedPosts:    in.RelatedPosts,
		RelatedJobs:     in.RelatedJobs,
		Version:         1,
	}
	if post.PostType == "" {
		post.PostType = models.PostTypeGeneral
	}
	if post.Visibility == "" {
		post.Visibility = models.VisibilityPublic
	}
	if in.CommentSettings != nil {
		post.CommentSettings = *in.CommentSettings
	}
	s.applyAuthorProfile(ctx, post, in.AuthorDisplayName, in.AuthorLogoURL)

	now := s.now()
	switch {
	case in.ScheduledAt != nil && in.ScheduledAt.After(now):
		at := in.ScheduledAt.UTC()
		post.ScheduledAt = &at
		post.Status = models.PostStatusDraft
	case in.Draft:
		post.Status = models.PostStatusDraft
	default:
		post.Status = models.PostStatusPublished
		post.PublishedAt = &now
	}

	media, err := s.storeUploads(ctx, in.Media)
	if err != nil {
		return nil, err
	}
	post.Media = media

	if err := s.posts.Create(ctx, post); err != nil {
		releaseMedia(ctx, s.blobs, post.MediaURLs())
		return nil, err
	}
	span.AddAttributes(observability.PostAttr(post.ID), attribute.String("post.status", string(post.Status)))

	if post.IsPublished() {
		afterFeedChange(ctx, post)
		publishEvent(ctx, s.events, notifications.FeedEvent{
			Type:     notifications.EventPostCreated,
			PostID:   post.ID,
			ActorID:  in.ActorID,
			AuthorID: post.AuthorID,
			Data:     map[string]any{"title": post.Title, "post_type": post.PostType},
		})
	}
	return post, nil
}

// applyAuthorProfile copies the account's display name and logo unless the
// request overrides them. A missing account leaves the fields empty.
func (s *PostService) applyAuthorProfile(ctx context.Context, post *models.Post, displayName, logoURL string) {
	if s.accounts != nil && (displayName == "" || logoURL == "") {
		account, err := s.accounts.GetByID(ctx, post.AuthorID)
		if err == nil {
			post.AuthorDisplayName = account.DisplayName
			post.AuthorLogoURL = account.LogoURL
		} else if !repository.IsNotFound(err) {
			middleware.Logger.WarnContext(ctx, "failed to load author profile",
				slog.Uint64("author_id", uint64(post.AuthorID)), slog.String("error", err.Error()))
		}
	}
	if displayName != "" {
		post.AuthorDisplayName = displayName
	}
	if logoURL != "" {
		post.AuthorLogoURL = logoURL
	}
}

// storeUploads writes every upload or none of them.
func (s *PostService) storeUploads(ctx context.Context, uploads []storage.Upload) ([]models.PostMedia, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.blobs == nil {
		return nil, models.NewValidationError("Media uploads are not available")
	}
	media := make([]models.PostMedia, 0, len(uploads))
	for _, up := range uploads {
		m, err := s.blobs.Store(ctx, up)
		if err != nil {
			stored := make([]string, 0, len(media))
			for _, done := range media {
				stored = append(stored, done.URL)
			}
			releaseMedia(ctx, s.blobs, stored)
			return nil, err
		}
		media = append(media, *m)
	}
	return media, nil
}

// GetPost returns a post the actor may read and counts the view. actorID is
// zero for anonymous readers. Hidden posts answer NOT_FOUND.
func (s *PostService) GetPost(ctx context.Context, id, actorID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, postError(err, id)
	}

	var actor *models.Actor
	if actorID != 0 {
		a, err := resolveActor(ctx, s.identity, actorID)
		if err != nil {
			return nil, err
		}
		actor = &a
	}
	if !canRead(post, actor) {
		return nil, models.NewNotFoundError("Post", id)
	}

	if post.IsPublished() && s.views.RecordView(ctx, id) {
		post.Engagement.Views++
	}

	if actorID != 0 {
		liked, err := s.posts.IsLiked(ctx, actorID, id)
		if err != nil {
			return nil, err
		}
		post.Liked = liked
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (_ *models.Post, err error) {
	span, ctx := observability.NewSpan(ctx, "PostService.UpdatePost",
		observability.PostAttr(in.PostID), observability.ActorAttr(in.ActorID))
	defer span.Finish(&err)

	trimPtr(in.Title)
	trimPtr(in.Body)
	trimPtr(in.Category)
	if in.Tags != nil {
		in.Tags = cleanTags(in.Tags)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	role, err := s.identity.Resolve(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	added, err := s.storeUploads(ctx, in.Media)
	if err != nil {
		return nil, err
	}

	var detached []string
	var published bool
	post, err := s.posts.Mutate(ctx, in.PostID, "update", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		detached, published = nil, false
		if post.Status == models.PostStatusDeleted {
			return nil, models.NewNotFoundError("Post", in.PostID)
		}
		if err := CanEdit(post, in.ActorID, role); err != nil {
			return nil, err
		}

		updates, err := patchColumns(in)
		if err != nil {
			return nil, err
		}

		if in.ScheduledAt != nil {
			if post.Status != models.PostStatusDraft {
				return nil, models.NewValidationError("scheduled_at can only be changed while the post is a draft")
			}
			at := in.ScheduledAt.UTC()
			updates["scheduled_at"] = at
			if !at.After(s.now()) {
				updates["status"] = models.PostStatusPublished
				updates["published_at"] = s.now()
				published = true
			}
		}

		repo := s.posts.WithTx(tx)
		if len(in.RemoveMedia) > 0 {
			urls, err := repo.RemoveMedia(ctx, post.ID, in.RemoveMedia)
			if err != nil {
				return nil, err
			}
			detached = urls
		}
		if len(added) > 0 {
			rows := make([]models.PostMedia, len(added))
			for i, m := range added {
				m.PostID = post.ID
				rows[i] = m
			}
			if err := repo.AddMedia(ctx, rows); err != nil {
				return nil, err
			}
		}
		return updates, nil
	})
	if err != nil {
		urls := make([]string, 0, len(added))
		for _, m := range added {
			urls = append(urls, m.URL)
		}
		releaseMedia(ctx, s.blobs, urls)
		return nil, postError(err, in.PostID)
	}

	releaseMedia(ctx, s.blobs, detached)
	afterFeedChange(ctx, nil)
	if published {
		publishEvent(ctx, s.events, notifications.FeedEvent{
			Type: notifications.EventPostPublished, PostID: post.ID, ActorID: in.ActorID, AuthorID: post.AuthorID,
		})
	}
	return post, nil
}

// patchColumns turns the non-nil patch fields into column updates.
// Serialized columns are written as their JSON text.
func patchColumns(in UpdatePostInput) (map[string]any, error) {
	updates := map[string]any{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Body != nil {
		updates["body"] = *in.Body
	}
	if in.PostType != nil {
		updates["post_type"] = *in.PostType
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Visibility != nil {
		updates["visibility"] = *in.Visibility
	}
	if in.CommentSettings != nil {
		updates["comment_settings_candidate_comments_enabled"] = in.CommentSettings.CandidateCommentsEnabled
		updates["comment_settings_employer_comments_enabled"] = in.CommentSettings.EmployerCommentsEnabled
	}
	for column, v := range map[string]any{
		"tags":          in.Tags,
		"related_posts": in.RelatedPosts,
		"related_jobs":  in.RelatedJobs,
	} {
		encoded, ok, err := jsonColumn(v)
		if err != nil {
			return nil, err
		}
		if ok {
			updates[column] = encoded
		}
	}
	return updates, nil
}

func jsonColumn(v any) (string, bool, error) {
	switch s := v.(type) {
	case []string:
		if s == nil {
			return "", false, nil
		}
	case []uint:
		if s == nil {
			return "", false, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// DeletePost soft-deletes the post: the row stays with status deleted and
// its media are detached and released.
func (s *PostService) DeletePost(ctx context.Context, postID, actorID uint) error {
	role, err := s.identity.Resolve(ctx, actorID)
	if err != nil {
		return err
	}

	var released []string
	post, err := s.posts.Mutate(ctx, postID, "delete", func(tx *gorm.DB, post *models.Post) (map[string]any, error) {
		released = nil
		if post.Status == models.PostStatusDeleted {
			return nil, models.NewNotFoundError("Post", postID)
		}
		if err := CanEdit(post, actorID, role); err != nil {
			return nil, err
		}
		urls, err := s.posts.WithTx(tx).RemoveMedia(ctx, post.ID, post.MediaURLs())
		if err != nil {
			return nil, err
		}
		released = urls
		return map[string]any{"status": models.PostStatusDeleted}, nil
	})
	if err != nil {
		return postError(err, postID)
	}

	releaseMedia(ctx, s.blobs, released)
	afterFeedChange(ctx, post)
	publishEvent(ctx, s.events, notifications.FeedEvent{
		Type: notifications.EventPostDeleted, PostID: postID, ActorID: actorID, AuthorID: post.AuthorID,
	})
	return nil
}

// ListPosts returns the public feed page.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	switch in.Sort {
	case "", repository.SortNewest, repository.SortOldest, repository.SortPopular, repository.SortMostViewed:
	default:
		return nil, models.NewValidationError("Invalid sort: " + in.Sort)
	}
	if in.PostType != "" && !in.PostType.Valid() {
		return nil, models.NewValidationError("Invalid post_type: " + string(in.PostType))
	}
	limit, offset := normalizePage(in.Limit, in.Offset)

	posts, err := s.posts.List(ctx, repository.PostFilter{
		PublicOnly: true,
		PostType:   in.PostType,
		Category:   strings.TrimSpace(in.Category),
		AuthorID:   in.AuthorID,
		Tag:        strings.TrimSpace(in.Tag),
		Featured:   in.Featured,
		Sort:       in.Sort,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}
	markLiked(ctx, s.posts, in.ActorID, posts)
	return posts, nil
}

// markLiked sets Liked for the actor's likes. Failures leave every flag false.
func markLiked(ctx context.Context, posts repository.PostRepository, actorID uint, list []*models.Post) {
	if actorID == 0 || len(list) == 0 {
		return
	}
	ids := make([]uint, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	liked, err := posts.GetLikedPostIDs(ctx, actorID, ids)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load liked posts", slog.String("error", err.Error()))
		return
	}
	likedSet := make(map[uint]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}
	for _, p := range list {
		p.Liked = likedSet[p.ID]
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// cleanTags trims tags and drops blank entries. Case and order are kept as
// submitted; tag matching ignores case at query time.
func cleanTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
