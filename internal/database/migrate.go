package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// feedIndexes back the public feed queries. Both postgres and sqlite accept
// IF NOT EXISTS, so the statements are safe to rerun.
var feedIndexes = []struct {
	name string
	sql  string
}{
	{"idx_posts_feed", "CREATE INDEX IF NOT EXISTS idx_posts_feed ON posts (status, visibility, created_at)"},
	{"idx_posts_due", "CREATE INDEX IF NOT EXISTS idx_posts_due ON posts (status, scheduled_at)"},
	{"idx_comments_thread", "CREATE INDEX IF NOT EXISTS idx_comments_thread ON comments (post_id, parent_id, id)"},
}

// Migrate brings the schema up to date: AutoMigrate for every persistent
// model followed by the composite feed indexes.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, idx := range feedIndexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}
