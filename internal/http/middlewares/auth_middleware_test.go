package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rohanmainali/sharelytics/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	userID string
	err    error
}

func (f fakeVerifier) Verify(token string) (string, error) {
	return f.userID, f.err
}

func protectedRouter(v middlewares.TokenVerifier) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.NewAuthMiddleware(v).RequireAuth())

	r.GET("/protected", func(c *gin.Context) {
		id, _ := middlewares.UserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"userId": id})
	})

	return r
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		verifier       fakeVerifier
		wantStatusCode int
	}{
		{
			name:           "valid token",
			header:         "Bearer good-token",
			verifier:       fakeVerifier{userID: "u1"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing header",
			header:         "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			header:         "Basic dXNlcjpwYXNz",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "bearer with empty token",
			header:         "Bearer ",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid or expired token",
			header:         "Bearer bad-token",
			verifier:       fakeVerifier{err: errors.New("token is expired")},
			wantStatusCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			r := protectedRouter(tt.verifier)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRateLimiterFixedWindow(t *testing.T) {
	rl := middlewares.NewRateLimiter(2, 100*time.Millisecond)

	r := gin.New()
	r.Use(rl.Middleware(middlewares.KeyByIP))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w.Code
	}

	if got := do(); got != http.StatusOK {
		t.Fatalf("first request got %d", got)
	}
	if got := do(); got != http.StatusOK {
		t.Fatalf("second request got %d", got)
	}
	if got := do(); got != http.StatusTooManyRequests {
		t.Fatalf("third request got %d, want 429", got)
	}

	time.Sleep(120 * time.Millisecond)

	if got := do(); got != http.StatusOK {
		t.Fatalf("request after window reset got %d", got)
	}
}
