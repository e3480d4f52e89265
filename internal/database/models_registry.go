package database

import "jobfeed/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Post{},
		&models.PostMedia{},
		&models.PostLike{},
		&models.PostShare{},
		&models.Comment{},
		&models.CommentLike{},
		&models.ModerationEvent{},
	}
}
