package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/userhub/internal/docstore"
	"github.com/geocoder89/userhub/internal/domain/user"
)

// CollectionName is where user documents live.
const CollectionName = "users"

const (
	fieldName      = "name"
	fieldEmail     = "email"
	fieldPassword  = "password"
	fieldIsActive  = "is_active"
	fieldIsAdmin   = "is_admin"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

type UsersRepo struct {
	coll docstore.Collection
	now  func() time.Time
}

func NewUsersRepo(coll docstore.Collection) *UsersRepo {
	return &UsersRepo{coll: coll, now: now}
}

// stores keep millisecond precision at best, so the app clock is truncated
// to match what a read will return.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// EnsureIndexes declares the unique constraint on email.
func (r *UsersRepo) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureUniqueIndex(ctx, fieldEmail)
}

func (r *UsersRepo) Create(ctx context.Context, fields user.Fields) (user.User, error) {
	u := user.New(fields, r.now())

	err := r.coll.InsertOne(ctx, toDocument(u))
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	doc, err := r.coll.FindByID(ctx, id)
	if err != nil {
		return user.User{}, notFound(err, "get user by id")
	}

	return fromDocument(doc)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	doc, err := r.coll.FindOne(ctx, docstore.Filter{fieldEmail: email})
	if err != nil {
		return user.User{}, notFound(err, "get user by email")
	}

	return fromDocument(doc)
}

func (r *UsersRepo) GetAll(ctx context.Context, skip, limit int) ([]user.User, error) {
	return r.find(ctx, docstore.Filter{}, skip, limit)
}

func (r *UsersRepo) GetActiveUsers(ctx context.Context, skip, limit int) ([]user.User, error) {
	return r.find(ctx, docstore.Filter{fieldIsActive: true}, skip, limit)
}

// Update stamps updated_at and overwrites every field present in the patch
// in a single write.
func (r *UsersRepo) Update(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	set := patchDocument(patch)
	set[fieldUpdatedAt] = r.now()

	doc, err := r.coll.UpdateFields(ctx, id, set)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, notFound(err, "update user")
	}

	return fromDocument(doc)
}

func (r *UsersRepo) Delete(ctx context.Context, id string) (bool, error) {
	err := r.coll.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete user: %w", err)
	}

	return true, nil
}

func (r *UsersRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.Count(ctx, docstore.Filter{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return n, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.coll.Ping(ctx)
}

func (r *UsersRepo) find(ctx context.Context, filter docstore.Filter, skip, limit int) ([]user.User, error) {
	docs, err := r.coll.Find(ctx, filter, int64(skip), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]user.User, 0, len(docs))

	for _, doc := range docs {
		u, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}

	return out, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return user.ErrNotFound
	}

	return fmt.Errorf("%s: %w", op, err)
}

func toDocument(u user.User) docstore.Document {
	doc := docstore.Document{
		docstore.IDField: u.ID,
		fieldName:        u.Name,
		fieldEmail:       u.Email,
		fieldPassword:    u.PasswordHash,
		fieldIsActive:    u.IsActive,
		fieldIsAdmin:     u.IsAdmin,
		fieldCreatedAt:   u.CreatedAt,
		fieldUpdatedAt:   nil,
	}

	if u.UpdatedAt != nil {
		doc[fieldUpdatedAt] = *u.UpdatedAt
	}

	return doc
}

func fromDocument(doc docstore.Document) (user.User, error) {
	var (
		u   user.User
		err error
	)

	u.ID = doc.ID()
	if u.ID == "" {
		return user.User{}, fmt.Errorf("decode user: missing %s", docstore.IDField)
	}

	if u.Name, err = doc.String(fieldName); err != nil {
		return user.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}
	if u.Email, err = doc.String(fieldEmail); err != nil {
		return user.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}
	if u.PasswordHash, err = doc.String(fieldPassword); err != nil {
		return user.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}
	if u.IsActive, err = doc.Bool(fieldIsActive); err != nil {
		return user.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}
	if u.IsAdmin, err = doc.Bool(fieldIsAdmin); err != nil {
		return user.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}

	created, err := doc.Time(fieldCreatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}
	if created != nil {
		u.CreatedAt = *created
	}

	if u.UpdatedAt, err = doc.Time(fieldUpdatedAt); err != nil {
		return user.User{}, fmt.Errorf("decode user %s: %w", u.ID, err)
	}

	return u, nil
}

// patchDocument is the allow-list of updatable fields.
func patchDocument(p user.Patch) docstore.Document {
	set := docstore.Document{}

	if p.Name != nil {
		set[fieldName] = *p.Name
	}
	if p.Email != nil {
		set[fieldEmail] = *p.Email
	}
	if p.IsActive != nil {
		set[fieldIsActive] = *p.IsActive
	}
	if p.IsAdmin != nil {
		set[fieldIsAdmin] = *p.IsAdmin
	}

	return set
}
