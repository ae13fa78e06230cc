package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/rohanmainali/sharelytics/internal/domain/user"
	"github.com/rohanmainali/sharelytics/internal/store"
)

func TestCreate_DuplicateEmail(t *testing.T) {
	t.Parallel()

	repo := NewUsersRepo()
	ctx := context.Background()

	if _, err := repo.Create(ctx, "a@x.com", "hash1", "A"); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := repo.Create(ctx, "a@x.com", "hash2", "B")
	if !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUpdateFields_PartialSemantics(t *testing.T) {
	t.Parallel()

	repo := NewUsersRepo()
	ctx := context.Background()

	u, err := repo.Create(ctx, "a@x.com", "hash", "A")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Absent fields stay unchanged; a present empty value is still applied.
	empty := ""
	got, err := repo.UpdateFields(ctx, u.ID, store.Fields{Name: &empty})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "" {
		t.Fatalf("name = %q, want empty", got.Name)
	}
	if got.Email != "a@x.com" {
		t.Fatalf("email changed unexpectedly: %q", got.Email)
	}

	// No fields present means nothing changes.
	got, err = repo.UpdateFields(ctx, u.ID, store.Fields{})
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if got.Email != "a@x.com" || got.Name != "" {
		t.Fatalf("empty update mutated the record: %+v", got)
	}
}

func TestUpdateFields_EmailConflictAndMissingUser(t *testing.T) {
	t.Parallel()

	repo := NewUsersRepo()
	ctx := context.Background()

	a, _ := repo.Create(ctx, "a@x.com", "hash", "A")
	_, _ = repo.Create(ctx, "b@x.com", "hash", "B")

	taken := "b@x.com"
	_, err := repo.UpdateFields(ctx, a.ID, store.Fields{Email: &taken})
	if !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	_, err = repo.UpdateFields(ctx, "no-such-id", store.Fields{})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSave_RoundTripAndMissingUser(t *testing.T) {
	t.Parallel()

	repo := NewUsersRepo()
	ctx := context.Background()

	u, _ := repo.Create(ctx, "a@x.com", "hash", "A")

	u.AddNotification(user.NewNotification("hello", "info"))
	if err := repo.Save(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Notifications) != 1 || got.Notifications[0].Message != "hello" {
		t.Fatalf("saved notifications not round-tripped: %+v", got.Notifications)
	}

	missing := user.User{ID: "no-such-id"}
	if err := repo.Save(ctx, missing); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFindByEmail_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := NewUsersRepo()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.FindByEmail(ctx, "a@x.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
