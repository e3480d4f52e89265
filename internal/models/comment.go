package models

import "time"

// Comment is a discussion entry on a post. Rows with a nil ParentID are
// top-level comments; rows with a ParentID are replies owned by that comment.
// Replies never nest further.
type Comment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PostID    uint       `gorm:"not null;index" json:"post_id"`
	ParentID  *uint      `gorm:"index" json:"parent_id,omitempty"`
	AuthorID  uint       `gorm:"not null;index" json:"author_id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	IsEdited  bool       `gorm:"not null" json:"is_edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Likes     int        `gorm:"not null;default:0" json:"likes"`
	CreatedAt time.Time  `json:"created_at"`

	LikedBy []uint     `gorm:"-" json:"liked_by"`
	Replies []*Comment `gorm:"-" json:"replies,omitempty"`
}

// IsReply reports whether the entry is a reply.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CommentLike records one actor's like on a comment or reply.
type CommentLike struct {
	CommentID uint      `gorm:"primaryKey;autoIncrement:false" json:"comment_id"`
	ActorID   uint      `gorm:"primaryKey;autoIncrement:false" json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}
