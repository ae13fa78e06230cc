package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rohanmainali/sharelytics/internal/cache"
	"github.com/rohanmainali/sharelytics/internal/domain/user"
	"github.com/rohanmainali/sharelytics/internal/http/handlers"
	"github.com/rohanmainali/sharelytics/internal/http/middlewares"
	"github.com/rohanmainali/sharelytics/internal/security"
	"github.com/rohanmainali/sharelytics/internal/store"
)

const testUserID = "u1"

// setupUserRouter mounts a single authenticated handler with the subject
// already placed on the context, the way the auth middleware would.
func setupUserRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(func(ctx *gin.Context) {
		ctx.Set(middlewares.CtxUserID, testUserID)
		ctx.Next()
	})

	r.Handle(method, path, h)

	return r
}

func newUserHandler(fake *fakeUserStore) *handlers.UserHandler {
	return handlers.NewUserHandler(fake, cache.New(time.Minute))
}

func TestGetWatchlist(t *testing.T) {
	fake := &fakeUserStore{
		findByIDFn: func(ctx context.Context, id string) (user.User, error) {
			if id != testUserID {
				t.Fatalf("looked up %q, want %q", id, testUserID)
			}
			return user.User{ID: id, Watchlist: []string{"NABIL", "NTC"}}, nil
		},
	}

	h := newUserHandler(fake)
	r := setupUserRouter(http.MethodGet, "/user/watchlist", h.GetWatchlist)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/watchlist", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Watchlist []string `json:"watchlist"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Watchlist) != 2 || resp.Watchlist[0] != "NABIL" {
		t.Fatalf("unexpected watchlist %v", resp.Watchlist)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag on the collection GET")
	}

	// a conditional re-read must short-circuit
	req := httptest.NewRequest(http.MethodGet, "/user/watchlist", nil)
	req.Header.Set("If-None-Match", etag)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("conditional GET got %d, want 304", w2.Code)
	}
}

func TestUpdateWatchlist(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantField     *[]string
		wantFieldsNil bool
	}{
		{
			name:      "replaces whole list",
			body:      `{"watchlist":["NABIL","ADBL"]}`,
			wantField: &[]string{"NABIL", "ADBL"},
		},
		{
			name:      "present empty list clears",
			body:      `{"watchlist":[]}`,
			wantField: &[]string{},
		},
		{
			name:          "absent field leaves list untouched",
			body:          `{}`,
			wantFieldsNil: true,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var got store.Fields

			fake := &fakeUserStore{
				updateFieldsFn: func(ctx context.Context, id string, f store.Fields) (user.User, error) {
					got = f
					u := user.User{ID: id, Watchlist: []string{"OLD"}}
					if f.Watchlist != nil {
						u.Watchlist = *f.Watchlist
					}
					return u, nil
				},
			}

			h := newUserHandler(fake)
			r := setupUserRouter(http.MethodPut, "/user/watchlist", h.UpdateWatchlist)

			w := doJSON(r, http.MethodPut, "/user/watchlist", tt.body)

			if w.Code != http.StatusOK {
				t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
			}

			if tt.wantFieldsNil {
				if got.Watchlist != nil {
					t.Fatalf("expected no watchlist update, got %v", *got.Watchlist)
				}
				return
			}

			if got.Watchlist == nil {
				t.Fatal("expected a watchlist update, got none")
			}
			if len(*got.Watchlist) != len(*tt.wantField) {
				t.Fatalf("stored %v, want %v", *got.Watchlist, *tt.wantField)
			}
		})
	}
}

func TestUpdatePortfolioAssignsEntryIDs(t *testing.T) {
	var got store.Fields

	fake := &fakeUserStore{
		updateFieldsFn: func(ctx context.Context, id string, f store.Fields) (user.User, error) {
			got = f
			u := user.User{ID: id}
			if f.Portfolio != nil {
				u.Portfolio = *f.Portfolio
			}
			return u, nil
		},
	}

	h := newUserHandler(fake)
	r := setupUserRouter(http.MethodPut, "/user/portfolio", h.UpdatePortfolio)

	body := `{"portfolio":[{"symbol":"NABIL","quantity":10,"buyPrice":512.5}]}`
	w := doJSON(r, http.MethodPut, "/user/portfolio", body)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if got.Portfolio == nil || len(*got.Portfolio) != 1 {
		t.Fatalf("expected one stored entry, got %+v", got.Portfolio)
	}

	entry := (*got.Portfolio)[0]
	if entry.ID == "" {
		t.Fatal("entry stored without an id")
	}
	if entry.Symbol != "NABIL" || entry.Quantity != 10 || entry.BuyPrice != 512.5 {
		t.Fatalf("entry mangled: %+v", entry)
	}
}

func TestGetProfileHidesPasswordHash(t *testing.T) {
	fake := &fakeUserStore{
		findByIDFn: func(ctx context.Context, id string) (user.User, error) {
			return user.User{ID: id, Name: "A", Email: "a@x.com", PasswordHash: "$2a$10$secret"}, nil
		},
	}

	h := newUserHandler(fake)
	r := setupUserRouter(http.MethodGet, "/user/profile", h.GetProfile)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/profile", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "secret") || strings.Contains(w.Body.String(), "password") {
		t.Fatalf("profile leaked credential material: %s", w.Body.String())
	}
}

func TestUpdateProfile(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		updateErr      error
		wantStatusCode int
		check          func(t *testing.T, f store.Fields)
	}{
		{
			name:           "name only",
			body:           `{"name":"New Name"}`,
			wantStatusCode: http.StatusOK,
			check: func(t *testing.T, f store.Fields) {
				if f.Name == nil || *f.Name != "New Name" {
					t.Fatalf("name not applied: %+v", f)
				}
				if f.Email != nil {
					t.Fatalf("email must stay untouched, got %q", *f.Email)
				}
			},
		},
		{
			name:           "empty object is a no-op",
			body:           `{}`,
			wantStatusCode: http.StatusOK,
			check: func(t *testing.T, f store.Fields) {
				if !f.Empty() {
					t.Fatalf("expected no field updates, got %+v", f)
				}
			},
		},
		{
			name:           "email already taken",
			body:           `{"email":"taken@x.com"}`,
			updateErr:      store.ErrEmailTaken,
			wantStatusCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var got store.Fields

			fake := &fakeUserStore{
				updateFieldsFn: func(ctx context.Context, id string, f store.Fields) (user.User, error) {
					got = f
					if tt.updateErr != nil {
						return user.User{}, tt.updateErr
					}
					return user.User{ID: id, Name: "New Name", Email: "a@x.com"}, nil
				},
			}

			h := newUserHandler(fake)
			r := setupUserRouter(http.MethodPut, "/user/profile", h.UpdateProfile)

			w := doJSON(r, http.MethodPut, "/user/profile", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	currentHash, err := security.HashPassword("old-pass")
	if err != nil {
		t.Fatalf("hashing fixture password: %v", err)
	}

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
		wantSaved      bool
	}{
		{
			name:           "success",
			body:           `{"currentPassword":"old-pass","newPassword":"new-pass"}`,
			wantStatusCode: http.StatusOK,
			wantSaved:      true,
		},
		{
			name:           "wrong current password",
			body:           `{"currentPassword":"guess","newPassword":"new-pass"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "missing new password",
			body:           `{"currentPassword":"old-pass"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var saved *user.User

			fake := &fakeUserStore{
				findByIDFn: func(ctx context.Context, id string) (user.User, error) {
					return user.User{ID: id, PasswordHash: currentHash}, nil
				},
				saveFn: func(ctx context.Context, u user.User) error {
					saved = &u
					return nil
				},
			}

			h := newUserHandler(fake)
			r := setupUserRouter(http.MethodPut, "/user/password", h.ChangePassword)

			w := doJSON(r, http.MethodPut, "/user/password", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if !tt.wantSaved {
				if saved != nil {
					t.Fatal("store must stay untouched on a rejected change")
				}
				return
			}

			if saved == nil {
				t.Fatal("expected the new hash to be persisted")
			}
			if err := security.CheckPassword(saved.PasswordHash, "new-pass"); err != nil {
				t.Fatalf("persisted hash does not match new password: %v", err)
			}
			if security.CheckPassword(saved.PasswordHash, "old-pass") == nil {
				t.Fatal("old password still matches after the change")
			}
		})
	}
}

func TestAddNotification(t *testing.T) {
	var saved *user.User

	fake := &fakeUserStore{
		findByIDFn: func(ctx context.Context, id string) (user.User, error) {
			return user.User{ID: id, Notifications: []user.Notification{
				{ID: "n-old", Message: "older"},
			}}, nil
		},
		saveFn: func(ctx context.Context, u user.User) error {
			saved = &u
			return nil
		},
	}

	h := newUserHandler(fake)
	r := setupUserRouter(http.MethodPost, "/user/notifications", h.AddNotification)

	w := doJSON(r, http.MethodPost, "/user/notifications", `{"message":"NABIL hit target"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Success      bool              `json:"success"`
		Notification user.Notification `json:"notification"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.Notification.Message != "NABIL hit target" {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
	if resp.Notification.Type != "info" {
		t.Fatalf("expected default type info, got %q", resp.Notification.Type)
	}
	if resp.Notification.Read {
		t.Fatal("new notification must start unread")
	}

	if saved == nil || len(saved.Notifications) != 2 {
		t.Fatalf("expected 2 persisted notifications, got %+v", saved)
	}
	// newest first
	if saved.Notifications[0].Message != "NABIL hit target" {
		t.Fatalf("new notification not prepended: %+v", saved.Notifications)
	}
}

func TestAddNotificationRequiresMessage(t *testing.T) {
	h := newUserHandler(&fakeUserStore{})
	r := setupUserRouter(http.MethodPost, "/user/notifications", h.AddNotification)

	w := doJSON(r, http.MethodPost, "/user/notifications", `{"type":"alert"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestMarkNotificationRead(t *testing.T) {
	stored := []user.Notification{
		{ID: "n-a", Message: "newest"},
		{ID: "n-b", Message: "older"},
	}

	tests := []struct {
		name           string
		ref            string
		wantStatusCode int
		wantReadID     string
	}{
		{name: "by position", ref: "1", wantStatusCode: http.StatusOK, wantReadID: "n-b"},
		{name: "by id", ref: "n-a", wantStatusCode: http.StatusOK, wantReadID: "n-a"},
		{name: "position out of range", ref: "7", wantStatusCode: http.StatusNotFound},
		{name: "unknown id", ref: "n-zzz", wantStatusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var saved *user.User

			fake := &fakeUserStore{
				findByIDFn: func(ctx context.Context, id string) (user.User, error) {
					ns := make([]user.Notification, len(stored))
					copy(ns, stored)
					return user.User{ID: id, Notifications: ns}, nil
				},
				saveFn: func(ctx context.Context, u user.User) error {
					saved = &u
					return nil
				},
			}

			h := newUserHandler(fake)
			r := setupUserRouter(http.MethodPut, "/user/notifications/:index/read", h.MarkNotificationRead)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/user/notifications/"+tt.ref+"/read", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode != http.StatusOK {
				if saved != nil {
					t.Fatal("store must stay untouched when the notification is missing")
				}
				return
			}

			if saved == nil {
				t.Fatal("expected the read flag to be persisted")
			}
			for _, n := range saved.Notifications {
				if n.ID == tt.wantReadID && !n.Read {
					t.Fatalf("notification %s not marked read: %+v", tt.wantReadID, saved.Notifications)
				}
				if n.ID != tt.wantReadID && n.Read {
					t.Fatalf("wrong notification marked read: %+v", saved.Notifications)
				}
			}
		})
	}
}

func TestAuthenticatedEndpointsAnswer404ForDeletedSubject(t *testing.T) {
	fake := &fakeUserStore{} // every lookup misses

	h := newUserHandler(fake)
	r := setupUserRouter(http.MethodGet, "/user/profile", h.GetProfile)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/profile", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404, body=%s", w.Code, w.Body.String())
	}
}
