// Package models contains data structures for the feed's domain models.
package models

import (
	"encoding/json"
	"math"
	"time"
)

// Field limits for posts and discussion entries.
const (
	MaxTitleLen           = 200
	MaxBodyLen            = 2000
	MaxCommentLen         = 500
	MaxReplyLen           = 300
	MaxModerationNotesLen = 1000
	MaxPlatformLen        = 50
)

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
	PostStatusDeleted   PostStatus = "deleted"
)

// PostType classifies what a post announces.
type PostType string

const (
	PostTypeJobAnnouncement   PostType = "job_announcement"
	PostTypeCompanyUpdate     PostType = "company_update"
	PostTypeIndustryNews      PostType = "industry_news"
	PostTypeCareerTips        PostType = "career_tips"
	PostTypeEventAnnouncement PostType = "event_announcement"
	PostTypeGeneral           PostType = "general"
)

// Valid reports whether t is one of the known post types.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeJobAnnouncement, PostTypeCompanyUpdate, PostTypeIndustryNews,
		PostTypeCareerTips, PostTypeEventAnnouncement, PostTypeGeneral:
		return true
	}
	return false
}

// Visibility controls who may read a post.
type Visibility string

const (
	VisibilityPublic        Visibility = "public"
	VisibilityFollowersOnly Visibility = "followers_only"
	VisibilityPrivate       Visibility = "private"
)

// Valid reports whether v is one of the known visibilities.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowersOnly, VisibilityPrivate:
		return true
	}
	return false
}

// Engagement holds the post counters. All values are non-negative.
type Engagement struct {
	Likes    int `gorm:"not null;default:0" json:"likes"`
	Shares   int `gorm:"not null;default:0" json:"shares"`
	Comments int `gorm:"not null;default:0" json:"comments"`
	Views    int `gorm:"not null;default:0" json:"views"`
	Clicks   int `gorm:"not null;default:0" json:"clicks"`
}

// Total is likes + shares + comments.
func (e Engagement) Total() int {
	return e.Likes + e.Shares + e.Comments
}

// Rate is Total per view as a percentage rounded to two decimals.
func (e Engagement) Rate() float64 {
	views := e.Views
	if views < 1 {
		views = 1
	}
	return math.Round(float64(e.Total())/float64(views)*100*100) / 100
}

// CommentSettings decides which audiences may comment on a post.
type CommentSettings struct {
	CandidateCommentsEnabled bool `gorm:"not null" json:"candidate_comments_enabled"`
	EmployerCommentsEnabled  bool `gorm:"not null" json:"employer_comments_enabled"`
}

// DefaultCommentSettings allows every audience to comment.
func DefaultCommentSettings() CommentSettings {
	return CommentSettings{CandidateCommentsEnabled: true, EmployerCommentsEnabled: true}
}

// Post represents a social update in the job portal feed.
type Post struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	AuthorID          uint        `gorm:"not null;index" json:"author_id"`
	AuthorRole        Role        `gorm:"size:32;not null" json:"author_role"`
	AuthorDisplayName string      `gorm:"size:200" json:"author_display_name"`
	AuthorLogoURL     string      `gorm:"size:500" json:"author_logo_url"`
	Title             string      `gorm:"size:200;not null" json:"title"`
	Body              string      `gorm:"type:text;not null" json:"body"`
	Media             []PostMedia `gorm:"foreignKey:PostID" json:"media"`
	PostType          PostType    `gorm:"size:32;not null;index" json:"post_type"`
	Category          string      `gorm:"size:100;index" json:"category"`
	Tags              []string    `gorm:"type:text;serializer:json" json:"tags"`
	Engagement        Engagement  `gorm:"embedded;embeddedPrefix:engagement_" json:"engagement"`
	Visibility        Visibility  `gorm:"size:32;not null" json:"visibility"`
	Status            PostStatus  `gorm:"size:32;not null;index" json:"status"`
	ScheduledAt       *time.Time  `gorm:"index" json:"scheduled_at,omitempty"`
	PublishedAt       *time.Time  `json:"published_at,omitempty"`

	IsModerated     bool       `gorm:"not null" json:"is_moderated"`
	ModeratedBy     *uint      `json:"moderated_by,omitempty"`
	ModeratedAt     *time.Time `json:"moderated_at,omitempty"`
	ModerationNotes string     `gorm:"type:text" json:"moderation_notes,omitempty"`
	IsFeatured      bool       `gorm:"not null" json:"is_featured"`
	IsPinned        bool       `gorm:"not null" json:"is_pinned"`

	CommentSettings CommentSettings `gorm:"embedded;embeddedPrefix:comment_settings_" json:"comment_settings"`
	// RelatedPosts and RelatedJobs are weak references: ids only, no cascade.
	RelatedPosts []uint   `gorm:"type:text;serializer:json" json:"related_posts"`
	RelatedJobs  []string `gorm:"type:text;serializer:json" json:"related_jobs"`

	// Liked reports whether the requesting actor liked this post (computed)
	Liked bool `gorm:"-" json:"liked"`

	Version   uint      `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublished is derived from Status; it is never stored.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// IsScheduled reports whether the post waits for the scheduler at now.
func (p *Post) IsScheduled(now time.Time) bool {
	return p.Status == PostStatusDraft && p.ScheduledAt != nil && p.ScheduledAt.After(now)
}

// IsPubliclyVisible reports whether the post belongs on public feeds.
func (p *Post) IsPubliclyVisible() bool {
	return p.IsPublished() && p.Visibility == VisibilityPublic
}

// MediaURLs lists the URLs of every attached media file.
func (p *Post) MediaURLs() []string {
	urls := make([]string, 0, len(p.Media))
	for _, m := range p.Media {
		urls = append(urls, m.URL)
	}
	return urls
}

// MarshalJSON adds the derived flags and engagement figures.
func (p Post) MarshalJSON() ([]byte, error) {
	type plain Post
	return json.Marshal(struct {
		plain
		IsPublished     bool    `json:"is_published"`
		IsScheduled     bool    `json:"is_scheduled"`
		TotalEngagement int     `json:"total_engagement"`
		EngagementRate  float64 `json:"engagement_rate"`
	}{
		plain:           plain(p),
		IsPublished:     p.IsPublished(),
		IsScheduled:     p.IsScheduled(time.Now().UTC()),
		TotalEngagement: p.Engagement.Total(),
		EngagementRate:  p.Engagement.Rate(),
	})
}

// MediaType is the kind of an uploaded media file.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeDocument MediaType = "document"
)

// PostMedia is a file attached to a post. The post owns it.
type PostMedia struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"not null;index" json:"post_id"`
	Type       MediaType `gorm:"size:16;not null" json:"type"`
	URL        string    `gorm:"size:500;not null" json:"url"`
	Filename   string    `gorm:"size:255" json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PostLike records one actor's like on a post.
type PostLike struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	ActorID   uint      `gorm:"primaryKey;autoIncrement:false" json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostShare is one entry of the append-only share log.
type PostShare struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	PostID   uint      `gorm:"not null;index" json:"post_id"`
	ActorID  uint      `gorm:"not null" json:"actor_id"`
	Platform string    `gorm:"size:50;not null" json:"platform"`
	SharedAt time.Time `json:"shared_at"`
}
