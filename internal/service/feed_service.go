package service

import (
	"context"
	"strings"
	"time"

	"jobfeed/internal/cache"
	"jobfeed/internal/models"
	"jobfeed/internal/repository"
)

// Trending defaults and bounds.
const (
	DefaultTrendingDays  = 7
	DefaultTrendingLimit = 10
	MaxTrendingDays      = 365
)

// FeedService ranks and searches the public feed.
type FeedService struct {
	posts       repository.PostRepository
	trendingTTL time.Duration
	now         func() time.Time
}

// NewFeedService builds a FeedService; ttl <= 0 uses cache.TrendingTTL.
func NewFeedService(posts repository.PostRepository, trendingTTL time.Duration) *FeedService {
	if trendingTTL <= 0 {
		trendingTTL = cache.TrendingTTL
	}
	return &FeedService{posts: posts, trendingTTL: trendingTTL, now: utcNow}
}

// Trending returns public posts created in the last days, ranked by likes,
// shares and comments. Results are cached per (limit, days).
func (s *FeedService) Trending(ctx context.Context, days, limit int) ([]*models.Post, error) {
	if days <= 0 {
		days = DefaultTrendingDays
	}
	if days > MaxTrendingDays {
		days = MaxTrendingDays
	}
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	posts := []*models.Post{}
	err := cache.CacheAside(ctx, cache.TrendingKey(limit, days), &posts, s.trendingTTL, func() error {
		since := s.now().AddDate(0, 0, -days)
		fetched, err := s.posts.List(ctx, repository.PostFilter{
			PublicOnly: true,
			Since:      &since,
			Sort:       repository.SortPopular,
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		posts = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ByCategory lists public posts of one category, newest first.
func (s *FeedService) ByCategory(ctx context.Context, category string, limit, offset int) ([]*models.Post, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, models.NewValidationError("category is required")
	}
	limit, offset = normalizePage(limit, offset)
	return s.posts.List(ctx, repository.PostFilter{
		PublicOnly: true,
		Category:   category,
		Sort:       repository.SortRecent,
		Limit:      limit,
		Offset:     offset,
	})
}

// Search matches the query against title, body, tags and category,
// case-insensitively. Results are newest first.
func (s *FeedService) Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	if len(query) > 200 {
		return nil, models.NewValidationError("Search query too long (max 200 characters)")
	}
	limit, offset = normalizePage(limit, offset)
	return s.posts.Search(ctx, query, limit, offset)
}
