package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"jobfeed/internal/models"
	"jobfeed/internal/repository"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixtures is a hand-written data set, usually kept in a YAML file:
//
//	accounts:
//	  - {id: 1, role: company, display_name: Acme}
//	posts:
//	  - author: 1
//	    title: We are hiring
//	    body: Three backend roles open.
//	    scheduled_in: 2h
//	    liked_by: [2, 3]
type Fixtures struct {
	Accounts []AccountFixture `yaml:"accounts"`
	Posts    []PostFixture    `yaml:"posts"`
}

// AccountFixture is one identity projection row.
type AccountFixture struct {
	ID          uint        `yaml:"id"`
	Role        models.Role `yaml:"role"`
	DisplayName string      `yaml:"display_name"`
	LogoURL     string      `yaml:"logo_url"`
}

// PostFixture describes one post and its engagement.
type PostFixture struct {
	Author     uint              `yaml:"author"`
	Title      string            `yaml:"title"`
	Body       string            `yaml:"body"`
	PostType   models.PostType   `yaml:"post_type"`
	Category   string            `yaml:"category"`
	Tags       []string          `yaml:"tags"`
	Visibility models.Visibility `yaml:"visibility"`
	// Draft keeps the post unpublished. ScheduledIn (a Go duration such as
	// "90m") makes it a scheduled draft due that long after loading.
	Draft       bool   `yaml:"draft"`
	ScheduledIn string `yaml:"scheduled_in"`
	Featured    bool   `yaml:"featured"`
	Pinned      bool   `yaml:"pinned"`

	CandidateComments *bool `yaml:"candidate_comments"`
	EmployerComments  *bool `yaml:"employer_comments"`

	LikedBy  []uint           `yaml:"liked_by"`
	Comments []CommentFixture `yaml:"comments"`
}

// CommentFixture is a top-level comment with optional replies.
type CommentFixture struct {
	Author  uint             `yaml:"author"`
	Content string           `yaml:"content"`
	Replies []CommentFixture `yaml:"replies"`
}

// LoadFixtures reads and validates a YAML fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(bytes.NewReader(raw))
}

// ParseFixtures decodes YAML fixtures. Unknown keys are rejected so typos
// surface instead of being ignored.
func ParseFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks references and field limits before anything is written.
func (fx *Fixtures) Validate() error {
	roles := make(map[uint]models.Role, len(fx.Accounts))
	for i, a := range fx.Accounts {
		if a.ID == 0 {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if !a.Role.Valid() {
			return fmt.Errorf("accounts[%d]: unknown role %q", i, a.Role)
		}
		if _, dup := roles[a.ID]; dup {
			return fmt.Errorf("accounts[%d]: duplicate id %d", i, a.ID)
		}
		roles[a.ID] = a.Role
	}

	known := func(id uint) bool { _, ok := roles[id]; return ok }
	for i, p := range fx.Posts {
		where := fmt.Sprintf("posts[%d]", i)
		role, ok := roles[p.Author]
		if !ok {
			return fmt.Errorf("%s: author %d is not a fixture account", where, p.Author)
		}
		if !role.CanAuthorPosts() {
			return fmt.Errorf("%s: role %s cannot author posts", where, role)
		}
		if strings.TrimSpace(p.Title) == "" || len([]rune(p.Title)) > models.MaxTitleLen {
			return fmt.Errorf("%s: title must be 1-%d characters", where, models.MaxTitleLen)
		}
		if strings.TrimSpace(p.Body) == "" || len([]rune(p.Body)) > models.MaxBodyLen {
			return fmt.Errorf("%s: body must be 1-%d characters", where, models.MaxBodyLen)
		}
		if p.PostType != "" && !p.PostType.Valid() {
			return fmt.Errorf("%s: unknown post_type %q", where, p.PostType)
		}
		if p.Visibility != "" && !p.Visibility.Valid() {
			return fmt.Errorf("%s: unknown visibility %q", where, p.Visibility)
		}
		if p.ScheduledIn != "" {
			d, err := time.ParseDuration(p.ScheduledIn)
			if err != nil || d <= 0 {
				return fmt.Errorf("%s: scheduled_in must be a positive duration", where)
			}
		}
		likers := make(map[uint]bool, len(p.LikedBy))
		for _, id := range p.LikedBy {
			if !known(id) {
				return fmt.Errorf("%s: liked_by %d is not a fixture account", where, id)
			}
			if likers[id] {
				return fmt.Errorf("%s: liked_by %d listed twice", where, id)
			}
			likers[id] = true
		}
		for j, c := range p.Comments {
			if err := validateComment(c, models.MaxCommentLen, known); err != nil {
				return fmt.Errorf("%s.comments[%d]: %w", where, j, err)
			}
			for k, r := range c.Replies {
				if len(r.Replies) > 0 {
					return fmt.Errorf("%s.comments[%d].replies[%d]: replies cannot nest", where, j, k)
				}
				if err := validateComment(r, models.MaxReplyLen, known); err != nil {
					return fmt.Errorf("%s.comments[%d].replies[%d]: %w", where, j, k, err)
				}
			}
		}
	}
	return nil
}

func validateComment(c CommentFixture, maxLen int, known func(uint) bool) error {
	if !known(c.Author) {
		return fmt.Errorf("author %d is not a fixture account", c.Author)
	}
	if n := len([]rune(strings.TrimSpace(c.Content))); n == 0 || n > maxLen {
		return fmt.Errorf("content must be 1-%d characters", maxLen)
	}
	return nil
}

// ApplyFixtures writes fx in one transaction and returns what it wrote.
func (s *Seeder) ApplyFixtures(ctx context.Context, fx *Fixtures) (Summary, error) {
	if err := fx.Validate(); err != nil {
		return Summary{}, err
	}

	now := time.Now().UTC()
	var sum Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accountRepo := repository.NewAccountRepository(tx)
		postRepo := repository.NewPostRepository(tx, 1)
		commentRepo := repository.NewCommentRepository(tx)

		accounts := make(map[uint]*models.Account, len(fx.Accounts))
		for _, a := range fx.Accounts {
			account := &models.Account{ID: a.ID, Role: a.Role, DisplayName: a.DisplayName, LogoURL: a.LogoURL}
			if err := accountRepo.Upsert(ctx, account); err != nil {
				return fmt.Errorf("fixture account %d: %w", a.ID, err)
			}
			accounts[a.ID] = account
			sum.Accounts++
		}

		for _, p := range fx.Posts {
			post := p.toPost(accounts[p.Author], now)
			if err := postRepo.Create(ctx, post); err != nil {
				return fmt.Errorf("fixture post %q: %w", p.Title, err)
			}
			sum.Posts++

			for _, actor := range p.LikedBy {
				if err := postRepo.AddLike(ctx, post.ID, actor); err != nil {
					return fmt.Errorf("fixture like on %q: %w", p.Title, err)
				}
				sum.Likes++
			}
			for _, c := range p.Comments {
				parent := &models.Comment{PostID: post.ID, AuthorID: c.Author, Content: strings.TrimSpace(c.Content)}
				if err := commentRepo.Create(ctx, parent); err != nil {
					return fmt.Errorf("fixture comment on %q: %w", p.Title, err)
				}
				sum.Comments++
				for _, r := range c.Replies {
					reply := &models.Comment{PostID: post.ID, ParentID: &parent.ID, AuthorID: r.Author, Content: strings.TrimSpace(r.Content)}
					if err := commentRepo.Create(ctx, reply); err != nil {
						return fmt.Errorf("fixture reply on %q: %w", p.Title, err)
					}
					sum.Comments++
				}
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// toPost maps the fixture onto a post row with counters matching its
// likes and comments.
func (p PostFixture) toPost(author *models.Account, now time.Time) *models.Post {
	post := &models.Post{
		AuthorID:          author.ID,
		AuthorRole:        author.Role,
		AuthorDisplayName: author.DisplayName,
		AuthorLogoURL:     author.LogoURL,
		Title:             strings.TrimSpace(p.Title),
		Body:              strings.TrimSpace(p.Body),
		PostType:          p.PostType,
		Category:          strings.TrimSpace(p.Category),
		Tags:              cleanTags(p.Tags),
		Visibility:        p.Visibility,
		Status:            models.PostStatusPublished,
		IsFeatured:        p.Featured,
		IsPinned:          p.Pinned,
		CommentSettings:   models.DefaultCommentSettings(),
		Version:           1,
	}
	if post.PostType == "" {
		post.PostType = models.PostTypeGeneral
	}
	if post.Visibility == "" {
		post.Visibility = models.VisibilityPublic
	}
	if p.CandidateComments != nil {
		post.CommentSettings.CandidateCommentsEnabled = *p.CandidateComments
	}
	if p.EmployerComments != nil {
		post.CommentSettings.EmployerCommentsEnabled = *p.EmployerComments
	}

	switch {
	case p.ScheduledIn != "":
		d, _ := time.ParseDuration(p.ScheduledIn)
		at := now.Add(d)
		post.Status = models.PostStatusDraft
		post.ScheduledAt = &at
	case p.Draft:
		post.Status = models.PostStatusDraft
	default:
		published := now
		post.PublishedAt = &published
	}

	post.Engagement.Likes = len(p.LikedBy)
	for _, c := range p.Comments {
		post.Engagement.Comments += 1 + len(c.Replies)
	}
	return post
}

// cleanTags stores fixture tags as written, minus blank entries.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
