package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"jobfeed/internal/cache"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestFeedService_TrendingRanking(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	quiet := env.publish(t, "Quiet")
	liked := env.publish(t, "Liked")
	shared := env.publish(t, "Shared")
	private := env.publish(t, "Private", func(in *CreatePostInput) { in.Visibility = models.VisibilityPrivate })

	for _, actor := range []uint{candidateID, employerID} {
		_, err := env.engagement.ToggleLike(ctx, liked.ID, actor)
		require.NoError(t, err)
	}
	_, err := env.engagement.ToggleLike(ctx, shared.ID, candidateID)
	require.NoError(t, err)
	_, err = env.engagement.Share(ctx, ShareInput{PostID: shared.ID, ActorID: candidateID})
	require.NoError(t, err)
	for _, actor := range []uint{candidateID, employerID, adminID} {
		_, err := env.engagement.ToggleLike(ctx, private.ID, actor)
		require.NoError(t, err)
	}

	got, err := env.feed.Trending(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{liked.ID, shared.ID, quiet.ID}, postIDs(got))

	got, err = env.feed.Trending(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{liked.ID}, postIDs(got))

	// a window that ends before the posts were created is empty
	env.clock.Advance(30 * 24 * time.Hour)
	got, err = env.feed.Trending(ctx, 7, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// Not parallel: the cache client is process-wide.
func TestFeedService_TrendingCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	env := newTestEnv(t)
	ctx := context.Background()
	first := env.publish(t, "First")

	got, err := env.feed.Trending(ctx, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID}, postIDs(got))
	assert.True(t, mr.Exists(cache.TrendingKey(10, 7)))

	// a write the services did not see keeps the cached ranking
	require.NoError(t, env.db.Model(&models.Post{}).Where("id = ?", first.ID).Update("title", "Renamed").Error)
	got, err = env.feed.Trending(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "First", got[0].Title)

	// engagement through the service drops it
	_, err = env.engagement.ToggleLike(ctx, first.ID, candidateID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.TrendingKey(10, 7)))

	got, err = env.feed.Trending(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Renamed", got[0].Title)
	assert.Equal(t, 1, got[0].Engagement.Likes)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(cache.TrendingKey(10, 7)), "entries expire after the configured TTL")
}

func TestFeedService_ByCategoryAndSearch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	eng := env.publish(t, "Backend role", func(in *CreatePostInput) {
		in.Category = "Engineering"
		in.Tags = []string{"golang"}
	})
	sales := env.publish(t, "Account executive", func(in *CreatePostInput) { in.Category = "Sales" })
	hidden := env.publish(t, "Backend secret", func(in *CreatePostInput) {
		in.Category = "Engineering"
		in.Visibility = models.VisibilityPrivate
	})
	_ = hidden

	got, err := env.feed.ByCategory(ctx, "engineering", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{eng.ID}, postIDs(got))

	_, err = env.feed.ByCategory(ctx, "  ", 0, 0)
	assertCode(t, err, models.CodeValidation)

	got, err = env.feed.Search(ctx, "BACKEND", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{eng.ID}, postIDs(got))

	got, err = env.feed.Search(ctx, "golang", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{eng.ID}, postIDs(got))

	got, err = env.feed.Search(ctx, "sales", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{sales.ID}, postIDs(got))

	got, err = env.feed.Search(ctx, "100%", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = env.feed.Search(ctx, "", 0, 0)
	assertCode(t, err, models.CodeValidation)
	_, err = env.feed.Search(ctx, strings.Repeat("q", 201), 0, 0)
	assertCode(t, err, models.CodeValidation)
}

func TestScheduler_Sweep(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	soon := env.clock.Now().Add(10 * time.Minute)
	later := env.clock.Now().Add(3 * time.Hour)
	first, err := env.postSvc.CreatePost(ctx, CreatePostInput{ActorID: companyID, Title: "Soon", Body: "b", ScheduledAt: &soon})
	require.NoError(t, err)
	second, err := env.postSvc.CreatePost(ctx, CreatePostInput{ActorID: companyID, Title: "Later", Body: "b", ScheduledAt: &later})
	require.NoError(t, err)
	cancelled, err := env.postSvc.CreatePost(ctx, CreatePostInput{ActorID: companyID, Title: "Cancelled", Body: "b", ScheduledAt: &soon})
	require.NoError(t, err)
	require.NoError(t, env.postSvc.DeletePost(ctx, cancelled.ID, companyID))

	n, err := env.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is due yet")

	env.clock.Advance(time.Hour)
	n, err = env.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = env.scheduler.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a second sweep is a no-op")

	published := env.reload(t, first.ID)
	assert.Equal(t, models.PostStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, first.Version+1, published.Version)
	assert.Equal(t, models.PostStatusDraft, env.reload(t, second.ID).Status)
	assert.Equal(t, models.PostStatusDeleted, env.reload(t, cancelled.ID).Status)

	feed, err := env.postSvc.ListPosts(ctx, ListPostsInput{})
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID}, postIDs(feed))

	assert.Equal(t, []string{notifications.EventPostDeleted, notifications.EventPostPublished}, env.events.types())
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	soon := env.clock.Now().Add(-time.Minute)
	require.NoError(t, env.posts.Create(context.Background(), &models.Post{
		AuthorID: companyID, AuthorRole: models.RoleCompany, Title: "Backlog", Body: "b",
		PostType: models.PostTypeGeneral, Visibility: models.VisibilityPublic,
		Status: models.PostStatusDraft, ScheduledAt: &soon, Version: 1,
		CommentSettings: models.DefaultCommentSettings(),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.scheduler.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(env.events.types()) == 1
	}, 5*time.Second, 10*time.Millisecond, "the first sweep runs immediately")
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
