package models

import "time"

// ModerationAction is an admin action on a post.
type ModerationAction string

const (
	ModerationApprove ModerationAction = "approve"
	ModerationReject  ModerationAction = "reject"
	ModerationFeature ModerationAction = "feature"
	ModerationPin     ModerationAction = "pin"
)

// ParseModerationAction validates a raw action name.
func ParseModerationAction(raw string) (ModerationAction, error) {
	switch a := ModerationAction(raw); a {
	case ModerationApprove, ModerationReject, ModerationFeature, ModerationPin:
		return a, nil
	}
	return "", NewValidationError("Invalid moderation action: " + raw)
}

// ModerationEvent is the audit record written for every moderation action.
type ModerationEvent struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	PostID     uint             `gorm:"not null;index" json:"post_id"`
	Action     ModerationAction `gorm:"size:16;not null" json:"action"`
	ActorID    uint             `gorm:"not null" json:"actor_id"`
	Notes      string           `gorm:"type:text" json:"notes,omitempty"`
	FromStatus PostStatus       `gorm:"size:32" json:"from_status"`
	ToStatus   PostStatus       `gorm:"size:32" json:"to_status"`
	CreatedAt  time.Time        `json:"created_at"`
}
