package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rohanmainali/sharelytics/internal/auth"
	"github.com/rohanmainali/sharelytics/internal/cache"
	"github.com/rohanmainali/sharelytics/internal/config"
	"github.com/rohanmainali/sharelytics/internal/http/handlers"
	"github.com/rohanmainali/sharelytics/internal/http/middlewares"
	"github.com/rohanmainali/sharelytics/internal/observability"
	"github.com/rohanmainali/sharelytics/internal/store"
)

const (
	maxBodyBytes     = 1 << 20 // JSON payloads are small; cap at 1 MiB
	authRateLimit    = 30
	authRateWindow   = time.Minute
	userCacheTTL     = 5 * time.Second
)

// NewRouter wires middlewares, handlers and metrics. rdb may be nil, in
// which case the auth rate limiter falls back to the in-process window.
func NewRouter(log *slog.Logger, cfg config.Config, st store.UserStore, ping func(context.Context) error, rdb *redis.Client) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Per-router registry so tests can build routers independently.
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(otelgin.Middleware("sharelytics-api"))
	r.Use(prom.GinHandleMiddleware())

	// ops endpoints
	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// every store call goes through the op metrics wrapper
	observed := store.WithMetrics(st, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	authMw := middlewares.NewAuthMiddleware(jwtManager)

	authHandler := handlers.NewAuthHandler(observed, jwtManager)
	userHandler := handlers.NewUserHandler(observed, cache.New(userCacheTTL))

	authGroup := r.Group("/auth")
	authGroup.Use(authLimiter(rdb))
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/login", authHandler.Login)

	userGroup := r.Group("/user")
	userGroup.Use(authMw.RequireAuth())
	userGroup.GET("/watchlist", userHandler.GetWatchlist)
	userGroup.PUT("/watchlist", userHandler.UpdateWatchlist)
	userGroup.GET("/portfolio", userHandler.GetPortfolio)
	userGroup.PUT("/portfolio", userHandler.UpdatePortfolio)
	userGroup.GET("/profile", userHandler.GetProfile)
	userGroup.PUT("/profile", userHandler.UpdateProfile)
	userGroup.PUT("/change-password", userHandler.ChangePassword)
	userGroup.GET("/notifications", userHandler.GetNotifications)
	userGroup.POST("/notifications", userHandler.AddNotification)
	userGroup.PUT("/notifications/:index/read", userHandler.MarkNotificationRead)

	return r
}

// authLimiter guards signup/login against brute force: shared window when
// Redis is configured, per-process otherwise.
func authLimiter(rdb *redis.Client) gin.HandlerFunc {
	if rdb != nil {
		return middlewares.NewRedisRateLimiter(rdb, authRateLimit, authRateWindow).Middleware(middlewares.KeyByIP)
	}

	return middlewares.NewRateLimiter(authRateLimit, authRateWindow).Middleware(middlewares.KeyByIP)
}
