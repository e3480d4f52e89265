package repository

import (
	"context"

	"jobfeed/internal/cache"
	"jobfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository reads and writes the local identity projection.
type AccountRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	Upsert(ctx context.Context, account *models.Account) error
	SetRole(ctx context.Context, id uint, role models.Role) error
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// GetByID reads through the Redis account cache.
func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := cache.CacheAside(ctx, cache.AccountKey(id), &account, cache.AccountTTL, func() error {
		return r.db.WithContext(ctx).First(&account, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Upsert(ctx context.Context, account *models.Account) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "display_name", "logo_url", "updated_at"}),
	}).Create(account).Error
	if err == nil {
		cache.InvalidateAccount(ctx, account.ID)
	}
	return err
}

func (r *accountRepository) SetRole(ctx context.Context, id uint, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidateAccount(ctx, id)
	return nil
}
