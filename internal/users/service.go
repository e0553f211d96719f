package users

import (
	"context"
	"strings"

	"github.com/gogotex/gogotex/backend/go-history/internal/apperrors"
	"github.com/gogotex/gogotex/backend/go-history/internal/history"
	"github.com/gogotex/gogotex/backend/go-history/internal/models"
	"github.com/gogotex/gogotex/backend/go-history/pkg/logger"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// Save creates or updates the directory entry for u.Sub.
func (s *Service) Save(ctx context.Context, u *models.User) (*models.User, error) {
	u.Sub = strings.TrimSpace(u.Sub)
	if u.Sub == "" {
		return nil, apperrors.NewValidation("user id is required", apperrors.Detail{Key: "sub", Message: "cannot be empty"})
	}
	out, err := s.repo.UpsertBySub(ctx, u)
	if err != nil {
		return nil, apperrors.Wrap(err, "Fail to write user to the database")
	}
	return out, nil
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// Actor resolves the attribution for sub. An empty sub is anonymous, and a
// sub missing from the directory is attributed by id only.
func (s *Service) Actor(ctx context.Context, sub string) (history.Actor, error) {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return history.Actor{}, nil
	}
	u, err := s.repo.GetBySub(ctx, sub)
	if err != nil {
		return history.Actor{}, apperrors.Wrap(err, "Fail to read user from the database")
	}
	if u == nil {
		logger.Debugf("users: %s not in directory, attributing by id", sub)
		return history.Bind(sub, history.Author{}), nil
	}
	return history.Bind(sub, u.Author()), nil
}
