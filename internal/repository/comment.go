package repository

import (
	"context"
	"errors"

	"jobfeed/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, comment *models.Comment) error
	ToggleLike(ctx context.Context, commentID, actorID uint) (bool, int, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) WithTx(tx *gorm.DB) CommentRepository {
	return &commentRepository{db: tx}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns every comment and reply of the post in insertion
// order with LikedBy populated. Callers assemble the tree.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	ids := make([]uint, len(comments))
	byID := make(map[uint]*models.Comment, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		c.LikedBy = []uint{}
		byID[c.ID] = c
	}

	var likes []models.CommentLike
	if err := r.db.WithContext(ctx).
		Where("comment_id IN ?", ids).
		Order("created_at ASC").
		Order("actor_id ASC").
		Find(&likes).Error; err != nil {
		return nil, err
	}
	for _, l := range likes {
		if c, ok := byID[l.CommentID]; ok {
			c.LikedBy = append(c.LikedBy, l.ActorID)
		}
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Model(comment).Updates(map[string]any{
		"content":   comment.Content,
		"is_edited": comment.IsEdited,
		"edited_at": comment.EditedAt,
	}).Error
}

// ToggleLike flips the actor's like on a comment and returns the new state
// and count. Run it inside the owning post's Mutate transaction.
func (r *commentRepository) ToggleLike(ctx context.Context, commentID, actorID uint) (bool, int, error) {
	db := r.db.WithContext(ctx)

	var comment models.Comment
	if err := db.First(&comment, commentID).Error; err != nil {
		return false, 0, err
	}

	var existing models.CommentLike
	err := db.Where("comment_id = ? AND actor_id = ?", commentID, actorID).First(&existing).Error
	switch {
	case err == nil:
		if err := db.Where("comment_id = ? AND actor_id = ?", commentID, actorID).
			Delete(&models.CommentLike{}).Error; err != nil {
			return false, 0, err
		}
		likes := max(comment.Likes-1, 0)
		if err := db.Model(&comment).Update("likes", likes).Error; err != nil {
			return false, 0, err
		}
		return false, likes, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(&models.CommentLike{CommentID: commentID, ActorID: actorID}).Error; err != nil {
			return false, 0, err
		}
		likes := comment.Likes + 1
		if err := db.Model(&comment).Update("likes", likes).Error; err != nil {
			return false, 0, err
		}
		return true, likes, nil
	default:
		return false, 0, err
	}
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}
