package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jobfeed/internal/config"
	"jobfeed/internal/database"
	"jobfeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLiteDB returns a migrated, file-backed sqlite database private to the test.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "repo.db"),
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type postOpt func(*models.Post)

func withStatus(s models.PostStatus) postOpt { return func(p *models.Post) { p.Status = s } }
func withVisibility(v models.Visibility) postOpt {
	return func(p *models.Post) { p.Visibility = v }
}
func withCreatedAt(at time.Time) postOpt { return func(p *models.Post) { p.CreatedAt = at } }
func withEngagement(likes, shares, comments int) postOpt {
	return func(p *models.Post) {
		p.Engagement.Likes, p.Engagement.Shares, p.Engagement.Comments = likes, shares, comments
	}
}

func seedPost(t *testing.T, repo PostRepository, title string, opts ...postOpt) *models.Post {
	t.Helper()
	p := &models.Post{
		AuthorID:        1,
		AuthorRole:      models.RoleCompany,
		Title:           title,
		Body:            "body of " + title,
		PostType:        models.PostTypeGeneral,
		Visibility:      models.VisibilityPublic,
		Status:          models.PostStatusPublished,
		CommentSettings: models.DefaultCommentSettings(),
		Version:         1,
	}
	for _, o := range opts {
		o(p)
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}
