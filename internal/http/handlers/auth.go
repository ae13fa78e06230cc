package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rohanmainali/sharelytics/internal/auth"
	"github.com/rohanmainali/sharelytics/internal/domain/user"
	"github.com/rohanmainali/sharelytics/internal/security"
	"github.com/rohanmainali/sharelytics/internal/store"
)

const storeTimeout = 3 * time.Second

type UserReader interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name string) (user.User, error)
}

type AuthStore interface {
	UserReader
	UserWriter
}

type AuthHandler struct {
	users AuthStore
	jwt   *auth.Manager
}

func NewAuthHandler(users AuthStore, jwtManager *auth.Manager) *AuthHandler {
	return &AuthHandler{
		users: users,
		jwt:   jwtManager,
	}
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUp creates the account but does not log the user in: the client is
// expected to call Login separately. That asymmetry is part of the API
// contract.
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	// Early duplicate check for a friendly 409; the store's unique
	// constraint is what actually closes the race.
	_, err := h.users.FindByEmail(cctx, req.Email)

	if err == nil {
		RespondConflict(ctx, "user_exists", "User already exists")
		return
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		RespondInternal(ctx, "Could not create user")
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	_, err = h.users.Create(cctx, req.Email, hash, req.Name)

	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			RespondConflict(ctx, "user_exists", "User already exists")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// Login verifies credentials and issues a session token. Unknown email (404)
// and wrong password (401) stay distinguishable in the response — an
// intentional, documented disclosure trade-off the client depends on.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	foundUser, err := h.users.FindByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not log in")
		return
	}

	// Any comparison failure, malformed stored hash included, reads as bad
	// credentials.
	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	token, err := h.jwt.Issue(foundUser.ID)

	if err != nil {
		RespondInternal(ctx, "Could not generate token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
	})
}
