package service

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/domain/user"
)

// AdminSeed describes the administrator account created at startup.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdminUser creates the seed admin unless an account with that email
// already exists. An incomplete seed is a no-op.
func (s *UsersService) EnsureAdminUser(ctx context.Context, seed AdminSeed) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	name := seed.Name
	if name == "" {
		name = "Administrator"
	}

	_, err := s.CreateUser(ctx, user.CreateUserRequest{
		Name:     name,
		Email:    seed.Email,
		Password: seed.Password,
		IsAdmin:  true,
	})
	if errors.Is(err, user.ErrEmailTaken) {
		s.log.DebugContext(ctx, "admin user already present", "email", seed.Email)
		return nil
	}

	return err
}
