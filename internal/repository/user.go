package repository

import (
	"context"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/pkg/errors"
)

// UserRepository stores users at users/{id} with an email index at
// user_emails/{email}.
type UserRepository struct {
	store store.Store
}

type emailIndex struct {
	UserID string `json:"userId"`
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

// ErrEmailTaken is returned by Create when another account holds the email.
var ErrEmailTaken = errors.New("email already registered")

// Create claims the email index entry, then writes the user. Only one of
// several concurrent creates for the same email succeeds.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	indexPath := store.Join(pathUserEmails, emailKey(u.Email))
	claimed, err := r.store.Create(ctx, indexPath, emailIndex{UserID: u.ID})
	if err != nil {
		return errors.Wrap(err, "Cannot index user email")
	}
	if !claimed {
		return ErrEmailTaken
	}
	if err := r.store.Set(ctx, nodePath(pathUsers, u.ID), u); err != nil {
		if derr := r.store.Delete(ctx, indexPath); derr != nil {
			return errors.Wrapf(err, "Cannot create user (email claim left behind: %v)", derr)
		}
		return errors.Wrap(err, "Cannot create user")
	}
	return nil
}

// FindByEmail returns a user by email address, or nil.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var idx emailIndex
	found, err := r.store.Get(ctx, store.Join(pathUserEmails, emailKey(email)), &idx)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot look up user email")
	}
	if !found {
		return nil, nil
	}
	return r.FindByID(ctx, idx.UserID)
}

// FindByID returns a user by ID, or nil.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	found, err := r.store.Get(ctx, nodePath(pathUsers, id), &u)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot find user")
	}
	if !found {
		return nil, nil
	}
	u.ID = id
	return &u, nil
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	u, err := r.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// TouchLogin records a successful login.
func (r *UserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	if err := r.store.Update(ctx, nodePath(pathUsers, id), map[string]interface{}{"lastLogin": at}); err != nil {
		return errors.Wrap(err, "Cannot record login")
	}
	return nil
}

// SetRole changes the stored role of a user.
func (r *UserRepository) SetRole(ctx context.Context, id, role string) error {
	if err := r.store.Update(ctx, nodePath(pathUsers, id), map[string]interface{}{"role": role}); err != nil {
		return errors.Wrap(err, "Cannot set user role")
	}
	return nil
}

// ListAll returns every user keyed by id.
func (r *UserRepository) ListAll(ctx context.Context) (map[string]domain.User, error) {
	children, err := r.store.Children(ctx, pathUsers)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot list users")
	}
	users, err := store.DecodeChildren[domain.User](children)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot decode users")
	}
	return unescapeKeys(users), nil
}
