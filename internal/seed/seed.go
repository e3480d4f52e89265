package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jobfeed/internal/middleware"
	"jobfeed/internal/models"
	"jobfeed/internal/repository"

	"gorm.io/gorm"
)

// Options sizes a generated data set.
type Options struct {
	Accounts int
	Posts    int
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// Seed makes the output reproducible; zero is random.
	Seed int64
	// Clean removes existing feed rows first.
	Clean bool
}

// Summary counts what a seeding run wrote.
type Summary struct {
	Accounts int
	Posts    int
	Likes    int
	Comments int
}

// Seeder writes demo data through the repositories.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// ClearAll deletes every feed row, children first. Accounts are kept.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.CommentLike{}, &models.Comment{}, &models.PostLike{}, &models.PostShare{},
			&models.PostMedia{}, &models.ModerationEvent{}, &models.Post{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// Generate creates opts.Accounts accounts (ids 1..n, id 1 is an admin) and
// opts.Posts published posts with likes and comments. Engagement counters
// match the rows written.
func (s *Seeder) Generate(ctx context.Context, opts Options) (Summary, error) {
	if opts.Accounts < 2 {
		return Summary{}, errors.New("seed: need at least 2 accounts")
	}
	if opts.Posts < 0 {
		return Summary{}, errors.New("seed: negative post count")
	}
	if opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return Summary{}, err
		}
	}

	f := NewFactory(opts.Seed, opts.MaxDays)
	var sum Summary

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accountRepo := repository.NewAccountRepository(tx)
		postRepo := repository.NewPostRepository(tx, 1)
		commentRepo := repository.NewCommentRepository(tx)

		var authors []*models.Account
		ids := make([]uint, 0, opts.Accounts)
		for i := 1; i <= opts.Accounts; i++ {
			account := f.Account(uint(i))
			if err := accountRepo.Upsert(ctx, account); err != nil {
				return fmt.Errorf("seed account %d: %w", account.ID, err)
			}
			ids = append(ids, account.ID)
			if account.Role.CanAuthorPosts() {
				authors = append(authors, account)
			}
			sum.Accounts++
		}

		for i := 0; i < opts.Posts; i++ {
			author := authors[f.Number(0, len(authors)-1)]
			likers := f.Pick(ids, f.Number(0, len(ids)))
			commenters := f.Pick(ids, f.Number(0, 3))

			post := f.Post(author)
			post.Engagement.Likes = len(likers)
			post.Engagement.Comments = len(commenters)
			post.Engagement.Views = len(likers) + f.Number(0, 200)
			if err := postRepo.Create(ctx, post); err != nil {
				return fmt.Errorf("seed post: %w", err)
			}
			sum.Posts++

			for _, actor := range likers {
				if err := postRepo.AddLike(ctx, post.ID, actor); err != nil {
					return fmt.Errorf("seed like: %w", err)
				}
				sum.Likes++
			}
			// commenters leave top-level comments; post.Engagement.Comments
			// counts every entry, so replies are not generated here
			for _, actor := range commenters {
				if err := commentRepo.Create(ctx, f.Comment(post.ID, actor, nil)); err != nil {
					return fmt.Errorf("seed comment: %w", err)
				}
				sum.Comments++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	middleware.Logger.InfoContext(ctx, "seed data generated",
		slog.Int("accounts", sum.Accounts),
		slog.Int("posts", sum.Posts),
		slog.Int("likes", sum.Likes),
		slog.Int("comments", sum.Comments))
	return sum, nil
}
