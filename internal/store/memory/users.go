// Package memory holds an in-process UserStore used by tests and local runs
// without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rohanmainali/sharelytics/internal/domain/user"
	"github.com/rohanmainali/sharelytics/internal/store"
)

type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User // keyed by id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == email {
			return clone(u), nil
		}
	}

	return user.User{}, store.ErrUserNotFound
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, store.ErrUserNotFound
	}

	return clone(u), nil
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Email == email {
			return user.User{}, store.ErrEmailTaken
		}
	}

	now := time.Now().UTC()
	u := user.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  passwordHash,
		Name:          name,
		Portfolio:     []user.PortfolioEntry{},
		Watchlist:     []string{},
		Notifications: []user.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	r.items[u.ID] = clone(u)

	return u, nil
}

func (r *UsersRepo) UpdateFields(ctx context.Context, id string, f store.Fields) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, store.ErrUserNotFound
	}

	if f.Email != nil && *f.Email != u.Email {
		for otherID, other := range r.items {
			if otherID != id && other.Email == *f.Email {
				return user.User{}, store.ErrEmailTaken
			}
		}
		u.Email = *f.Email
	}
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.Watchlist != nil {
		u.Watchlist = append([]string{}, (*f.Watchlist)...)
	}
	if f.Portfolio != nil {
		u.Portfolio = append([]user.PortfolioEntry{}, (*f.Portfolio)...)
	}
	u.UpdatedAt = time.Now().UTC()

	r.items[id] = clone(u)

	return clone(u), nil
}

func (r *UsersRepo) Save(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[u.ID]; !ok {
		return store.ErrUserNotFound
	}

	u.UpdatedAt = time.Now().UTC()
	r.items[u.ID] = clone(u)

	return nil
}

// clone copies the record so callers never share slices with the map.
func clone(u user.User) user.User {
	u.Portfolio = append([]user.PortfolioEntry{}, u.Portfolio...)
	u.Watchlist = append([]string{}, u.Watchlist...)
	u.Notifications = append([]user.Notification{}, u.Notifications...)
	return u
}
