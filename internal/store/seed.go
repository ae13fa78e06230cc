package store

import (
	"context"
	"errors"

	"github.com/rohanmainali/sharelytics/internal/security"
)

// EnsureSeedUser creates a local dev account at startup when one is
// configured. Existing accounts are left untouched; a concurrent start
// losing the create race is fine too.
func EnsureSeedUser(ctx context.Context, s UserStore, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.Create(ctx, email, hash, name)
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}

	return err
}
