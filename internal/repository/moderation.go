package repository

import (
	"context"

	"jobfeed/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository stores the moderation audit trail.
type ModerationRepository interface {
	WithTx(tx *gorm.DB) ModerationRepository
	Record(ctx context.Context, event *models.ModerationEvent) error
	History(ctx context.Context, postID uint) ([]models.ModerationEvent, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new ModerationRepository
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) WithTx(tx *gorm.DB) ModerationRepository {
	return &moderationRepository{db: tx}
}

func (r *moderationRepository) Record(ctx context.Context, event *models.ModerationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// History lists a post's moderation events, oldest first.
func (r *moderationRepository) History(ctx context.Context, postID uint) ([]models.ModerationEvent, error) {
	var events []models.ModerationEvent
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("id ASC").
		Find(&events).Error
	return events, err
}
