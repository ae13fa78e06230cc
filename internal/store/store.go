// Package store defines the narrow contract this service requires from its
// keyed-record backend, plus the backends that satisfy it (mongo, postgres,
// memory).
package store

import (
	"context"
	"errors"

	"github.com/rohanmainali/sharelytics/internal/domain/user"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is raised by the backend's unique constraint, not by a
	// preceding read, so concurrent signups with the same email cannot both
	// succeed.
	ErrEmailTaken = errors.New("email already in use")
)

// Fields is a partial update: nil means leave the stored value unchanged,
// a non-nil pointer (even to an empty value) means replace it.
type Fields struct {
	Name      *string
	Email     *string
	Watchlist *[]string
	Portfolio *[]user.PortfolioEntry
}

// Empty reports whether the update names no fields at all.
func (f Fields) Empty() bool {
	return f.Name == nil && f.Email == nil && f.Watchlist == nil && f.Portfolio == nil
}

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	// Create assigns id and timestamps and persists a user with empty
	// collections. Returns ErrEmailTaken when the email already exists.
	Create(ctx context.Context, email, passwordHash, name string) (user.User, error)
	// UpdateFields applies a partial update and returns the post-update
	// record, or ErrUserNotFound when the id no longer resolves.
	UpdateFields(ctx context.Context, id string, f Fields) (user.User, error)
	// Save persists an in-memory-mutated record in full (password change,
	// notification edits).
	Save(ctx context.Context, u user.User) error
}
