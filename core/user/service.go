package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/trezcool/classroom/core"
)

var (
	// errors
	ErrNotFound = errors.New("user not found")
)

type (
	// Repository gives access to user profiles stored by the remote data service.
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
	}

	Service struct {
		repo          Repository
		unknownPrefix string
	}
)

// NewService returns a profile Service. `unknownPrefix` is used to name users without a profile.
func NewService(repo Repository, unknownPrefix string) *Service {
	if unknownPrefix == "" {
		unknownPrefix = "User"
	}
	return &Service{repo: repo, unknownPrefix: unknownPrefix}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, core.CleanString(id))
}

// DisplayName returns the profile name of user `id`,
// or "<prefix> <first 4 chars of id>" when the profile is unknown or unnamed.
func (svc *Service) DisplayName(ctx context.Context, id string) string {
	if svc.repo != nil {
		if usr, err := svc.GetByID(ctx, id); err == nil && usr.Name != "" {
			return usr.Name
		}
	}
	return svc.FallbackName(id)
}

// FallbackName returns "<prefix> <first 4 chars of id>".
func (svc *Service) FallbackName(id string) string {
	return fmt.Sprintf("%s %s", svc.unknownPrefix, ShortID(id))
}
