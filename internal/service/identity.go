package service

import (
	"context"

	"jobfeed/internal/models"
	"jobfeed/internal/repository"
)

// IdentityProvider resolves an actor id to its role.
type IdentityProvider interface {
	Resolve(ctx context.Context, actorID uint) (models.Role, error)
}

// AccountIdentity resolves roles from the local accounts projection.
type AccountIdentity struct {
	accounts repository.AccountRepository
}

func NewAccountIdentity(accounts repository.AccountRepository) *AccountIdentity {
	return &AccountIdentity{accounts: accounts}
}

// Resolve returns UNAUTHORIZED for ids with no account.
func (p *AccountIdentity) Resolve(ctx context.Context, actorID uint) (models.Role, error) {
	if actorID == 0 {
		return "", models.NewUnauthorizedError("Unknown actor")
	}
	account, err := p.accounts.GetByID(ctx, actorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", models.NewUnauthorizedError("Unknown actor")
		}
		return "", err
	}
	return account.Role, nil
}

func resolveActor(ctx context.Context, identity IdentityProvider, actorID uint) (models.Actor, error) {
	role, err := identity.Resolve(ctx, actorID)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{ID: actorID, Role: role}, nil
}
