package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/security"
)

type UsersStore interface {
	Create(ctx context.Context, fields user.Fields) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetAll(ctx context.Context, skip, limit int) ([]user.User, error)
	GetActiveUsers(ctx context.Context, skip, limit int) ([]user.User, error)
	Update(ctx context.Context, id string, patch user.Patch) (user.User, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(hash, plain string) bool
}

type UsersService struct {
	store  UsersStore
	hasher PasswordHasher
	log    *slog.Logger
}

func NewUsersService(store UsersStore, hasher PasswordHasher, log *slog.Logger) *UsersService {
	if log == nil {
		log = slog.Default()
	}

	return &UsersService{store: store, hasher: hasher, log: log}
}

// CreateUser rejects a taken email, hashes the password and stores the user.
func (s *UsersService) CreateUser(ctx context.Context, req user.CreateUserRequest) (user.Public, error) {
	req.Email = user.NormalizeEmail(req.Email)

	_, err := s.store.GetByEmail(ctx, req.Email)

	switch {
	case err == nil:
		return user.Public{}, user.ErrEmailTaken
	case !errors.Is(err, user.ErrNotFound):
		return user.Public{}, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			return user.Public{}, user.ErrPasswordTooLong
		}
		return user.Public{}, err
	}

	u, err := s.store.Create(ctx, user.Fields{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		IsAdmin:      req.IsAdmin,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			// lost the race between the lookup and the insert
			s.log.WarnContext(ctx, "duplicate email rejected by unique index", "email", req.Email)
		}
		return user.Public{}, err
	}

	s.log.InfoContext(ctx, "user created", "user_id", u.ID, "is_admin", u.IsAdmin)

	return u.Public(), nil
}

func (s *UsersService) GetUserByID(ctx context.Context, id string) (user.Public, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return user.Public{}, err
	}

	return u.Public(), nil
}

// GetUserByEmail returns the full record, hash included. It exists for a
// future login path and must not be routed.
func (s *UsersService) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.store.GetByEmail(ctx, user.NormalizeEmail(email))
}

func (s *UsersService) GetUsers(ctx context.Context, skip, limit int) ([]user.Public, error) {
	users, err := s.store.GetAll(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	return publics(users), nil
}

func (s *UsersService) GetActiveUsers(ctx context.Context, skip, limit int) ([]user.Public, error) {
	users, err := s.store.GetActiveUsers(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	return publics(users), nil
}

func (s *UsersService) GetUserCount(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// UpdateUser applies only the supplied fields. An empty request reads the
// current record back without writing.
func (s *UsersService) UpdateUser(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error) {
	patch := user.PatchFromRequest(req)

	if patch.Empty() {
		return s.GetUserByID(ctx, id)
	}

	u, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return user.Public{}, err
	}

	return u.Public(), nil
}

func (s *UsersService) DeleteUser(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

func (s *UsersService) VerifyPassword(plain, hash string) bool {
	return s.hasher.Verify(hash, plain)
}

func publics(users []user.User) []user.Public {
	out := make([]user.Public, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}
