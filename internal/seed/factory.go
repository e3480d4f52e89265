// Package seed fills a feed database with demo data, either generated or
// loaded from YAML fixtures. It is meant for development and tests only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"jobfeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	categories = []string{"Engineering", "Sales", "Marketing", "Design", "Finance", "Operations", "People"}

	postTypes = []models.PostType{
		models.PostTypeJobAnnouncement,
		models.PostTypeCompanyUpdate,
		models.PostTypeIndustryNews,
		models.PostTypeCareerTips,
		models.PostTypeEventAnnouncement,
		models.PostTypeGeneral,
	}

	// weights for generated accounts, in order of roleMix
	roleMix = []models.Role{
		models.RoleCompany, models.RoleCompany, models.RoleConsultancy,
		models.RoleEmployer, models.RoleCandidate, models.RoleCandidate, models.RoleCandidate,
	}
)

// Factory builds domain entities with fake but plausible content. A fixed
// seed produces the same entities every run.
type Factory struct {
	faker   *gofakeit.Faker
	now     time.Time
	maxDays int
}

// NewFactory returns a Factory. seed zero picks a random seed.
func NewFactory(seed int64, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{faker: gofakeit.New(seed), now: time.Now().UTC(), maxDays: maxDays}
}

// Account builds an account for id. The first account is always an admin
// so generated data can be moderated.
func (f *Factory) Account(id uint) *models.Account {
	role := roleMix[f.faker.Number(0, len(roleMix)-1)]
	if id == 1 {
		role = models.RoleAdmin
	}

	account := &models.Account{ID: id, Role: role}
	switch role {
	case models.RoleCompany, models.RoleConsultancy:
		account.DisplayName = f.faker.Company()
		account.LogoURL = fmt.Sprintf("https://logo.example.com/%s.png", strings.ToLower(f.faker.Word()))
	default:
		account.DisplayName = f.faker.Name()
	}
	return account
}

// Post builds an unsaved published post by author.
func (f *Factory) Post(author *models.Account, overrides ...func(*models.Post)) *models.Post {
	postType := postTypes[f.faker.Number(0, len(postTypes)-1)]
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(4, 9)), ".")
	if postType == models.PostTypeJobAnnouncement {
		title = "Hiring: " + f.faker.JobTitle()
	}

	tags := make([]string, 0, 3)
	seen := map[string]bool{}
	for i := f.faker.Number(0, 3); i > 0; i-- {
		tag := strings.ToLower(f.faker.Word())
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	// realistic created_at spread
	created := f.now.Add(-time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute)
	published := created

	post := &models.Post{
		AuthorID:          author.ID,
		AuthorRole:        author.Role,
		AuthorDisplayName: author.DisplayName,
		AuthorLogoURL:     author.LogoURL,
		Title:             title,
		Body:              f.faker.Paragraph(1, f.faker.Number(2, 5), 10, " "),
		PostType:          postType,
		Category:          categories[f.faker.Number(0, len(categories)-1)],
		Tags:              tags,
		Visibility:        models.VisibilityPublic,
		Status:            models.PostStatusPublished,
		PublishedAt:       &published,
		CommentSettings:   models.DefaultCommentSettings(),
		Version:           1,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	if f.faker.Number(1, 10) == 1 {
		post.Visibility = models.VisibilityFollowersOnly
	}
	if f.faker.Number(1, 8) == 1 {
		post.CommentSettings.CandidateCommentsEnabled = false
	}
	if postType == models.PostTypeJobAnnouncement {
		post.RelatedJobs = []string{fmt.Sprintf("job-%d", f.faker.Number(1000, 9999))}
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// Comment builds an unsaved comment. Replies get a shorter text.
func (f *Factory) Comment(postID, authorID uint, parentID *uint) *models.Comment {
	words := f.faker.Number(5, 20)
	if parentID != nil {
		words = f.faker.Number(3, 10)
	}
	return &models.Comment{
		PostID:   postID,
		ParentID: parentID,
		AuthorID: authorID,
		Content:  f.faker.Sentence(words),
	}
}

// Pick returns n distinct entries of ids, or all of them when n is larger.
func (f *Factory) Pick(ids []uint, n int) []uint {
	shuffled := append([]uint(nil), ids...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := f.faker.Number(0, i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// Number exposes the factory's random source for callers sizing batches.
func (f *Factory) Number(min, max int) int {
	return f.faker.Number(min, max)
}
