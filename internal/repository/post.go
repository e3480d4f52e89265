// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobfeed/internal/models"
	"jobfeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sort orders accepted by List.
const (
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortPopular    = "popular"
	SortMostViewed = "most_viewed"
	SortRecent     = "recent"
)

// Counter columns that IncrementCounter may touch.
const (
	CounterViews  = "engagement_views"
	CounterClicks = "engagement_clicks"
)

// PostFilter narrows List. Zero values mean "no filter".
type PostFilter struct {
	PublicOnly bool
	Statuses   []models.PostStatus
	PostType   models.PostType
	Category   string
	AuthorID   uint
	Tag        string
	Featured   *bool
	Since      *time.Time
	Sort       string
	Limit      int
	Offset     int
}

// MutateFunc applies a change to a locked post. It must only use tx for
// database access and returns the column updates to write. The version
// column is managed by Mutate.
type MutateFunc func(tx *gorm.DB, post *models.Post) (map[string]any, error)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	WithTx(tx *gorm.DB) PostRepository
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error)
	Mutate(ctx context.Context, id uint, operation string, fn MutateFunc) (*models.Post, error)
	IncrementCounter(ctx context.Context, id uint, column string) error
	DueScheduled(ctx context.Context, now time.Time, limit int) ([]uint, error)
	PromoteScheduled(ctx context.Context, id uint, now time.Time) (bool, error)
	IsLiked(ctx context.Context, actorID, postID uint) (bool, error)
	GetLikedPostIDs(ctx context.Context, actorID uint, postIDs []uint) ([]uint, error)
	LikedBy(ctx context.Context, postID uint) ([]uint, error)
	AddLike(ctx context.Context, postID, actorID uint) error
	RemoveLike(ctx context.Context, postID, actorID uint) (bool, error)
	AddShare(ctx context.Context, share *models.PostShare) error
	CountLikes(ctx context.Context, postID uint) (int64, error)
	CountShares(ctx context.Context, postID uint) (int64, error)
	AddMedia(ctx context.Context, media []models.PostMedia) error
	RemoveMedia(ctx context.Context, postID uint, urls []string) ([]string, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db         *gorm.DB
	maxRetries int
	backoff    time.Duration
	log        *observability.RepoLogger
}

// NewPostRepository creates a new post repository. maxRetries bounds the
// attempts Mutate makes before surfacing a conflict.
func NewPostRepository(db *gorm.DB, maxRetries int) PostRepository {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &postRepository{
		db:         db,
		maxRetries: maxRetries,
		backoff:    10 * time.Millisecond,
		log:        observability.NewRepoLogger("posts"),
	}
}

func (r *postRepository) WithTx(tx *gorm.DB) PostRepository {
	clone := *r
	clone.db = tx
	return &clone
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{"post_id": post.ID, "author_id": post.AuthorID, "status": post.Status})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	q := r.db.WithContext(ctx).Model(&models.Post{}).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })

	if filter.PublicOnly {
		q = publicOnly(q)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.PostType != "" {
		q = q.Where("post_type = ?", filter.PostType)
	}
	if filter.Category != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(filter.Category))
	}
	if filter.AuthorID != 0 {
		q = q.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Tag != "" {
		// tags are stored as a JSON array; match the encoded element,
		// ignoring case
		encoded, err := json.Marshal(strings.ToLower(filter.Tag))
		if err != nil {
			return nil, err
		}
		q = q.Where(`LOWER(tags) LIKE ? ESCAPE '\'`, "%"+escapeLike(string(encoded))+"%")
	}
	if filter.Featured != nil {
		q = q.Where("is_featured = ?", *filter.Featured)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", *filter.Since)
	}

	q = applySort(q, filter.Sort)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var posts []*models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func publicOnly(q *gorm.DB) *gorm.DB {
	return q.Where("status = ? AND visibility = ?", models.PostStatusPublished, models.VisibilityPublic)
}

// applySort appends the ORDER BY for the requested sort. Every order ends
// in a unique key so pagination is stable.
func applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case SortOldest:
		return db.Order("created_at ASC").Order("id ASC")
	case SortPopular:
		return db.Order("engagement_likes DESC").
			Order("engagement_shares DESC").
			Order("engagement_comments DESC").
			Order("created_at DESC").
			Order("id DESC")
	case SortMostViewed:
		return db.Order("engagement_views DESC").Order("created_at DESC").Order("id DESC")
	case SortRecent:
		return db.Order("created_at DESC").Order("id DESC")
	default: // newest and anything unrecognized
		return db.Order("is_pinned DESC").Order("created_at DESC").Order("id DESC")
	}
}

func (r *postRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error) {
	defer observability.TrackQuery("search", "posts")()

	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	match := `LOWER(title) LIKE ? ESCAPE '\' OR LOWER(body) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\'`
	args := []any{like, like, like}
	if needle := tagNeedle(query); needle != "" {
		match += ` OR LOWER(tags) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(needle))+"%")
	}

	var posts []*models.Post
	err := publicOnly(r.db.WithContext(ctx).Model(&models.Post{})).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("("+match+")", args...).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

// tagNeedle renders query the way it appears inside the stored JSON tag
// array, minus the array's own syntax, so it can only match tag text.
// It returns "" when nothing but JSON punctuation was given.
func tagNeedle(query string) string {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '"', ',', '[', ']', '\\':
			return -1
		}
		return r
	}, query)
	if stripped == "" {
		return ""
	}
	encoded, _ := json.Marshal(stripped)
	return strings.Trim(string(encoded), `"`)
}

// Mutate runs fn against the post under a row lock and writes the returned
// updates guarded by the version read inside the same transaction. Lost
// races are replayed up to maxRetries times before a Conflict is returned.
func (r *postRepository) Mutate(ctx context.Context, id uint, operation string, fn MutateFunc) (*models.Post, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * r.backoff):
			}
		}

		post, err := r.mutateOnce(ctx, id, fn)
		if err == nil {
			return post, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		observability.MutationConflicts.WithLabelValues(operation, "retry").Inc()
		lastErr = err
	}

	observability.MutationConflicts.WithLabelValues(operation, "exhausted").Inc()
	r.log.LogError(ctx, lastErr, operation)
	conflict := models.NewConflictError("Post", id)
	conflict.Err = lastErr
	return nil, conflict
}

func (r *postRepository) mutateOnce(ctx context.Context, id uint, fn MutateFunc) (*models.Post, error) {
	var result models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			First(&post, id).Error; err != nil {
			return err
		}

		version := post.Version
		updates, err := fn(tx, &post)
		if err != nil {
			return err
		}
		if updates == nil {
			updates = map[string]any{}
		}
		updates["version"] = version + 1

		res := tx.Model(&models.Post{}).
			Where("id = ? AND version = ?", id, version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		return tx.Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			First(&result, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// IncrementCounter bumps an engagement counter on a published post with a
// single atomic statement. The version is left alone.
func (r *postRepository) IncrementCounter(ctx context.Context, id uint, column string) error {
	if column != CounterViews && column != CounterClicks {
		return fmt.Errorf("unsupported counter column %q", column)
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND status = ?", id, models.PostStatusPublished).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DueScheduled returns ids of drafts whose release time has passed.
func (r *postRepository) DueScheduled(ctx context.Context, now time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", models.PostStatusDraft, now).
		Order("scheduled_at ASC").
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// PromoteScheduled publishes one due draft. The status is re-checked in the
// UPDATE itself, so a post archived or deleted since DueScheduled stays put
// and a second call is a no-op.
func (r *postRepository) PromoteScheduled(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", id, models.PostStatusDraft, now).
		Updates(map[string]any{
			"status":       models.PostStatusPublished,
			"published_at": now,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		r.log.LogUpdate(ctx, map[string]interface{}{"post_id": id, "status": models.PostStatusPublished, "source": "scheduler"})
	}
	return res.RowsAffected == 1, nil
}

func (r *postRepository) IsLiked(ctx context.Context, actorID, postID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PostLike{}).
		Where("actor_id = ? AND post_id = ?", actorID, postID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postRepository) GetLikedPostIDs(ctx context.Context, actorID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.PostLike{}).
		Where("actor_id = ? AND post_id IN ?", actorID, postIDs).
		Pluck("post_id", &liked).Error
	return liked, err
}

func (r *postRepository) LikedBy(ctx context.Context, postID uint) ([]uint, error) {
	var actors []uint
	err := r.db.WithContext(ctx).
		Model(&models.PostLike{}).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("actor_id ASC").
		Pluck("actor_id", &actors).Error
	return actors, err
}

func (r *postRepository) AddLike(ctx context.Context, postID, actorID uint) error {
	return r.db.WithContext(ctx).Create(&models.PostLike{PostID: postID, ActorID: actorID}).Error
}

// RemoveLike deletes the membership row and reports whether one existed.
func (r *postRepository) RemoveLike(ctx context.Context, postID, actorID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND actor_id = ?", postID, actorID).
		Delete(&models.PostLike{})
	return res.RowsAffected > 0, res.Error
}

func (r *postRepository) AddShare(ctx context.Context, share *models.PostShare) error {
	return r.db.WithContext(ctx).Create(share).Error
}

func (r *postRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

func (r *postRepository) CountShares(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PostShare{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

func (r *postRepository) AddMedia(ctx context.Context, media []models.PostMedia) error {
	if len(media) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&media).Error
}

// RemoveMedia detaches the given URLs from the post and returns the ones
// that were actually attached.
func (r *postRepository) RemoveMedia(ctx context.Context, postID uint, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	var attached []string
	if err := r.db.WithContext(ctx).Model(&models.PostMedia{}).
		Where("post_id = ? AND url IN ?", postID, urls).
		Pluck("url", &attached).Error; err != nil {
		return nil, err
	}
	if len(attached) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND url IN ?", postID, attached).
		Delete(&models.PostMedia{}).Error
	if err != nil {
		return nil, err
	}
	return attached, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
