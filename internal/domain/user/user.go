package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrEmailTaken      = errors.New("the email is already registered")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// User is the stored record. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Public is the API-safe view of a user.
type Public struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	IsAdmin   bool       `json:"is_admin"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (u User) Public() Public {
	return Public{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsActive:  u.IsActive,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Fields are the values a caller may supply when a record is created.
type Fields struct {
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

func New(f Fields, now time.Time) User {
	return User{
		ID:           uuid.NewString(),
		Name:         f.Name,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		IsActive:     true,
		IsAdmin:      f.IsAdmin,
		CreatedAt:    now,
	}
}

// NormalizeEmail lowercases the domain part. The local part is left as given
// since mailbox names may be case sensitive.
func NormalizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}

	return email[:at+1] + strings.ToLower(email[at+1:])
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

// with pointers, a field the caller left out stays nil
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email" binding:"omitempty,email"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
}

// Patch holds only the fields a caller explicitly supplied.
type Patch struct {
	Name     *string
	Email    *string
	IsActive *bool
	IsAdmin  *bool
}

func PatchFromRequest(req UpdateUserRequest) Patch {
	p := Patch{
		Name:     req.Name,
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
	}

	if req.Email != nil {
		email := NormalizeEmail(*req.Email)
		p.Email = &email
	}

	return p
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.IsActive == nil && p.IsAdmin == nil
}
