package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jobfeed/internal/config"
	"jobfeed/internal/database"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"
	"jobfeed/internal/repository"
	"jobfeed/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Actor ids seeded by newTestEnv.
const (
	companyID     uint = 1
	consultancyID uint = 2
	candidateID   uint = 3
	employerID    uint = 4
	adminID       uint = 5
	otherCompany  uint = 6
	unknownRoleID uint = 7
)

type recordingEvents struct {
	mu     sync.Mutex
	events []notifications.FeedEvent
}

func (r *recordingEvents) PublishFeedEvent(_ context.Context, ev notifications.FeedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// memoryBlobs is an in-memory BlobStore.
type memoryBlobs struct {
	mu       sync.Mutex
	n        int
	stored   map[string]bool
	released []string
	failOn   string
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{stored: map[string]bool{}}
}

func (b *memoryBlobs) Store(_ context.Context, up storage.Upload) (*models.PostMedia, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if up.Filename == b.failOn {
		return nil, models.NewValidationError("Unsupported media type: " + up.Filename)
	}
	b.n++
	url := "/media/" + up.Filename
	b.stored[url] = true
	return &models.PostMedia{Type: models.MediaTypeImage, URL: url, Filename: up.Filename, Size: int64(len(up.Content))}, nil
}

func (b *memoryBlobs) Release(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stored, url)
	b.released = append(b.released, url)
	return nil
}

type testEnv struct {
	db         *gorm.DB
	posts      repository.PostRepository
	comments   repository.CommentRepository
	accounts   repository.AccountRepository
	identity   *AccountIdentity
	events     *recordingEvents
	blobs      *memoryBlobs
	postSvc    *PostService
	engagement *EngagementService
	moderation *ModerationService
	feed       *FeedService
	scheduler  *Scheduler
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "service.db"),
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:       db,
		posts:    repository.NewPostRepository(db, 5),
		comments: repository.NewCommentRepository(db),
		accounts: repository.NewAccountRepository(db),
		events:   &recordingEvents{},
		blobs:    newMemoryBlobs(),
		clock:    &fakeClock{now: time.Now().UTC()},
	}
	env.identity = NewAccountIdentity(env.accounts)

	ctx := context.Background()
	for id, role := range map[uint]models.Role{
		companyID:     models.RoleCompany,
		consultancyID: models.RoleConsultancy,
		candidateID:   models.RoleCandidate,
		employerID:    models.RoleEmployer,
		adminID:       models.RoleAdmin,
		otherCompany:  models.RoleCompany,
		unknownRoleID: models.Role("recruiter_bot"),
	} {
		require.NoError(t, env.accounts.Upsert(ctx, &models.Account{ID: id, Role: role, DisplayName: "Account " + string(role)}))
	}

	env.engagement = NewEngagementService(env.posts, env.comments, env.identity, env.events)
	env.engagement.now = env.clock.Now
	env.postSvc = NewPostService(env.posts, env.accounts, env.identity, env.blobs, env.events, env.engagement)
	env.postSvc.now = env.clock.Now
	env.moderation = NewModerationService(env.posts, repository.NewModerationRepository(db), env.identity, env.events)
	env.moderation.now = env.clock.Now
	env.feed = NewFeedService(env.posts, time.Minute)
	env.feed.now = env.clock.Now
	env.scheduler = NewScheduler(env.posts, env.events, time.Hour, 10)
	env.scheduler.now = env.clock.Now
	return env
}

// publish creates a published public post as companyID.
func (e *testEnv) publish(t *testing.T, title string, mutate ...func(*CreatePostInput)) *models.Post {
	t.Helper()
	in := CreatePostInput{ActorID: companyID, Title: title, Body: "Body of " + title}
	for _, m := range mutate {
		m(&in)
	}
	post, err := e.postSvc.CreatePost(context.Background(), in)
	require.NoError(t, err)
	return post
}

func (e *testEnv) reload(t *testing.T, id uint) *models.Post {
	t.Helper()
	post, err := e.posts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return post
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

func assertForbidden(t *testing.T, err error, reason string) {
	t.Helper()
	assertCode(t, err, models.CodeForbidden)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, reason, appErr.Reason)
}
