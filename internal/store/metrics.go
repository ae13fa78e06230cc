package store

import (
	"context"

	"github.com/rohanmainali/sharelytics/internal/domain/user"
)

// Observer times one logical store operation and classifies its failure.
type Observer interface {
	ObserveStore(op string, fn func() error) error
}

// WithMetrics wraps a UserStore so every operation is observed under a
// stable logical name, whatever the backend.
func WithMetrics(inner UserStore, obs Observer) UserStore {
	return &observedStore{inner: inner, obs: obs}
}

type observedStore struct {
	inner UserStore
	obs   Observer
}

func (s *observedStore) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.obs.ObserveStore("users.find_by_email", func() error {
		var err error
		u, err = s.inner.FindByEmail(ctx, email)
		return err
	})
	return u, err
}

func (s *observedStore) FindByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.obs.ObserveStore("users.find_by_id", func() error {
		var err error
		u, err = s.inner.FindByID(ctx, id)
		return err
	})
	return u, err
}

func (s *observedStore) Create(ctx context.Context, email, passwordHash, name string) (user.User, error) {
	var u user.User
	err := s.obs.ObserveStore("users.create", func() error {
		var err error
		u, err = s.inner.Create(ctx, email, passwordHash, name)
		return err
	})
	return u, err
}

func (s *observedStore) UpdateFields(ctx context.Context, id string, f Fields) (user.User, error) {
	var u user.User
	err := s.obs.ObserveStore("users.update_fields", func() error {
		var err error
		u, err = s.inner.UpdateFields(ctx, id, f)
		return err
	})
	return u, err
}

func (s *observedStore) Save(ctx context.Context, u user.User) error {
	return s.obs.ObserveStore("users.save", func() error {
		return s.inner.Save(ctx, u)
	})
}
