package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rohanmainali/sharelytics/internal/cache"
	"github.com/rohanmainali/sharelytics/internal/domain/user"
	"github.com/rohanmainali/sharelytics/internal/http/middlewares"
	"github.com/rohanmainali/sharelytics/internal/security"
	"github.com/rohanmainali/sharelytics/internal/store"
)

type UserStateStore interface {
	FindByID(ctx context.Context, id string) (user.User, error)
	UpdateFields(ctx context.Context, id string, f store.Fields) (user.User, error)
	Save(ctx context.Context, u user.User) error
}

// UserHandler serves every authenticated per-user operation. Each one is
// scoped to the token subject placed on the context by the auth middleware;
// no request can touch another user's record.
type UserHandler struct {
	store UserStateStore
	cache *cache.Users
}

func NewUserHandler(st UserStateStore, userCache *cache.Users) *UserHandler {
	return &UserHandler{
		store: st,
		cache: userCache,
	}
}

// subject pulls the verified user id off the context. The auth middleware
// guarantees it; a miss means a wiring bug, answered as unauthenticated.
func (h *UserHandler) subject(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthenticated", "No token provided")
		return "", false
	}

	return id, true
}

// loadForRead serves GETs through the TTL cache.
func (h *UserHandler) loadForRead(ctx context.Context, id string) (user.User, error) {
	if u, ok := h.cache.Get(id); ok {
		return u, nil
	}

	u, err := h.store.FindByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	h.cache.Set(id, u)

	return u, nil
}

// loadForWrite always reads the store: read-modify-write must not start from
// a cached document.
func (h *UserHandler) loadForWrite(ctx context.Context, id string) (user.User, error) {
	return h.store.FindByID(ctx, id)
}

func (h *UserHandler) respondLoadError(ctx *gin.Context, err error) {
	if errors.Is(err, store.ErrUserNotFound) {
		// token subject deleted between issuance and use
		RespondNotFound(ctx, "User not found")
		return
	}

	RespondInternal(ctx, "Server error")
}

// --- watchlist ---

func (h *UserHandler) GetWatchlist(ctx *gin.Context) {
	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.loadForRead(cctx, id)
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"watchlist": u.Watchlist})
}

type UpdateWatchlistRequest struct {
	Watchlist *[]string `json:"watchlist"`
}

// UpdateWatchlist replaces the whole collection; there is no per-item merge.
// An absent field leaves the stored list untouched.
func (h *UserHandler) UpdateWatchlist(ctx *gin.Context) {
	var req UpdateWatchlistRequest

	if !BindJSON(ctx, &req) {
		return
	}

	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.store.UpdateFields(cctx, id, store.Fields{Watchlist: req.Watchlist})
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	h.cache.Invalidate(id)

	ctx.JSON(http.StatusOK, gin.H{"watchlist": u.Watchlist})
}

// --- portfolio ---

func (h *UserHandler) GetPortfolio(ctx *gin.Context) {
	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.loadForRead(cctx, id)
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"portfolio": u.Portfolio})
}

type UpdatePortfolioRequest struct {
	Portfolio *[]user.PortfolioEntry `json:"portfolio"`
}

func (h *UserHandler) UpdatePortfolio(ctx *gin.Context) {
	var req UpdatePortfolioRequest

	if !BindJSON(ctx, &req) {
		return
	}

	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	if req.Portfolio != nil {
		// entries get their own identity, independent of the user
		*req.Portfolio = user.EnsureEntryIDs(*req.Portfolio)
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.store.UpdateFields(cctx, id, store.Fields{Portfolio: req.Portfolio})
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	h.cache.Invalidate(id)

	ctx.JSON(http.StatusOK, gin.H{"portfolio": u.Portfolio})
}

// --- profile ---

func (h *UserHandler) GetProfile(ctx *gin.Context) {
	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.loadForRead(cctx, id)
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	// PasswordHash is json:"-"; the hash never leaves the server.
	ctx.JSON(http.StatusOK, u)
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateProfile applies only the fields present in the request. Absent is
// not clear-to-empty; a present empty string is still applied.
func (h *UserHandler) UpdateProfile(ctx *gin.Context) {
	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.store.UpdateFields(cctx, id, store.Fields{Name: req.Name, Email: req.Email})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use")
			return
		}
		h.respondLoadError(ctx, err)
		return
	}

	h.cache.Invalidate(id)

	ctx.JSON(http.StatusOK, u)
}

// --- password ---

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h *UserHandler) ChangePassword(ctx *gin.Context) {
	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.loadForWrite(cctx, id)
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.CurrentPassword); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Current password is incorrect")
		return
	}

	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	u.PasswordHash = hash

	if err := h.store.Save(cctx, u); err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	h.cache.Invalidate(id)

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password changed successfully",
	})
}

// --- notifications ---

func (h *UserHandler) GetNotifications(ctx *gin.Context) {
	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.loadForRead(cctx, id)
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"notifications": u.Notifications})
}

type AddNotificationRequest struct {
	Message string `json:"message" binding:"required"`
	Type    string `json:"type"`
}

// AddNotification prepends and caps the per-user history. The read-modify-
// write is atomic per document at the store but not across concurrent adds
// for the same user; last write wins.
func (h *UserHandler) AddNotification(ctx *gin.Context) {
	var req AddNotificationRequest

	if !BindJSON(ctx, &req) {
		return
	}

	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.loadForWrite(cctx, id)
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	n := user.NewNotification(req.Message, req.Type)
	u.AddNotification(n)

	if err := h.store.Save(cctx, u); err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	h.cache.Invalidate(id)

	ctx.JSON(http.StatusOK, gin.H{
		"success":      true,
		"notification": n,
	})
}

// MarkNotificationRead accepts the positional index the original API used,
// or the notification's stable id for clients that migrated off positional
// addressing.
func (h *UserHandler) MarkNotificationRead(ctx *gin.Context) {
	ref := ctx.Param("index")

	id, ok := h.subject(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.loadForWrite(cctx, id)
	if err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	idx, found := u.FindNotification(ref)
	if !found {
		RespondNotFound(ctx, "Notification not found")
		return
	}

	u.Notifications[idx].Read = true

	if err := h.store.Save(cctx, u); err != nil {
		h.respondLoadError(ctx, err)
		return
	}

	h.cache.Invalidate(id)

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
