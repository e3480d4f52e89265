package service

import (
	"context"
	"log/slog"
	"time"

	"jobfeed/internal/cache"
	"jobfeed/internal/middleware"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"
	"jobfeed/internal/repository"
	"jobfeed/internal/storage"
)

// EventPublisher receives feed events after a change commits.
type EventPublisher interface {
	PublishFeedEvent(ctx context.Context, ev notifications.FeedEvent) error
}

// BlobStore keeps media files for posts.
type BlobStore interface {
	Store(ctx context.Context, up storage.Upload) (*models.PostMedia, error)
	Release(ctx context.Context, url string) error
}

// publishEvent is fire-and-forget: the change is already committed, so a
// broken pub/sub only costs live subscribers an update.
func publishEvent(ctx context.Context, events EventPublisher, ev notifications.FeedEvent) {
	if events == nil {
		return
	}
	if err := events.PublishFeedEvent(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish feed event",
			slog.String("type", ev.Type),
			slog.Uint64("post_id", uint64(ev.PostID)),
			slog.String("error", err.Error()))
	}
}

// releaseMedia frees blob URLs best-effort.
func releaseMedia(ctx context.Context, blobs BlobStore, urls []string) {
	if blobs == nil {
		return
	}
	for _, url := range urls {
		if err := blobs.Release(ctx, url); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to release media",
				slog.String("url", url), slog.String("error", err.Error()))
		}
	}
}

// afterFeedChange drops cached rankings once a post that may appear in them changes.
func afterFeedChange(ctx context.Context, post *models.Post) {
	if post == nil || post.Visibility == models.VisibilityPublic {
		cache.InvalidateTrending(ctx)
	}
}

// postError maps a missing row to NOT_FOUND for the post.
func postError(err error, postID uint) error {
	if repository.IsNotFound(err) {
		return models.NewNotFoundError("Post", postID)
	}
	return err
}

func utcNow() time.Time {
	return time.Now().UTC()
}
