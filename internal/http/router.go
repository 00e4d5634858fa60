package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/stagehubhq/stagehub/internal/auth"
	"github.com/stagehubhq/stagehub/internal/cache"
	"github.com/stagehubhq/stagehub/internal/config"
	"github.com/stagehubhq/stagehub/internal/domain/identity"
	"github.com/stagehubhq/stagehub/internal/http/handlers"
	"github.com/stagehubhq/stagehub/internal/http/middlewares"
	"github.com/stagehubhq/stagehub/internal/observability"
	"github.com/stagehubhq/stagehub/internal/profile"
	"github.com/stagehubhq/stagehub/internal/relations"
	"github.com/stagehubhq/stagehub/internal/repo/postgres"
	"github.com/stagehubhq/stagehub/internal/session"
	"github.com/stagehubhq/stagehub/internal/storage"
)

const maxAvatarBodyBytes = 5 << 20 // profile update with avatar upload

type RouterDeps struct {
	Log     *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client // nil disables the event cache
	Objects *storage.DiskStore
	Prom    *observability.Prom
	Cfg     config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Cfg

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware("stagehub"))
	}

	// health
	ping := func() error {
		if deps.Pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return deps.Pool.Ping(ctx)
	}

	healthHandler := handlers.NewHealthHandler(ping)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// avatars are public objects
	if deps.Objects != nil {
		r.Static("/static", deps.Objects.Root())
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(deps.Pool, deps.Prom)
	eventsRepo := postgres.NewEventsRepo(deps.Pool, deps.Prom)
	relationsRepo := postgres.NewRelationsRepo(deps.Pool, deps.Prom)
	refreshRepo := postgres.NewRefreshTokensRepo(deps.Pool)

	var evCache *cache.EventsCache
	if deps.Redis != nil {
		evCache = cache.NewEventsCache(deps.Redis, 5*time.Minute, deps.Log, deps.Prom)
	}

	// session store + services
	sessions := session.New(usersRepo, deps.Log)
	profileService := profile.NewService(usersRepo, sessions, deps.Objects, deps.Log)
	aggregator := relations.NewService(relationsRepo, eventsRepo, evCache, deps.Log)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	authMW := middlewares.NewAuthMiddleware(jwtManager)

	authLimiter := middlewares.NewRateLimiter(cfg.RateLimitAuth, cfg.RateLimitWindow)
	apiLimiter := middlewares.NewRateLimiter(cfg.RateLimitAPI, cfg.RateLimitWindow)

	// handlers
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, refreshRepo, sessions, cfg)
	eventsHandler := handlers.NewEventsHandler(eventsRepo, evCache)
	meHandler := handlers.NewMeHandler(sessions, profileService, relationsRepo, deps.Log)
	savedHandler := handlers.NewSavedHandler(aggregator, relationsRepo, deps.Log)

	// auth surface: unauthenticated, limited by IP
	authGroup := r.Group("/auth",
		authLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		middlewares.RequireJSON(),
		middlewares.MaxBodyBytes(1<<20),
	)
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	// public catalog reads
	r.GET("/events", eventsHandler.ListEvents)
	r.GET("/events/:id", eventsHandler.GetEventByID)

	// authenticated surface
	api := r.Group("/",
		authMW.RequireAuth(),
		apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP),
	)

	api.GET("/me", meHandler.Me)
	// multipart allowed here, so no RequireJSON
	api.PUT("/me/profile", middlewares.MaxBodyBytes(maxAvatarBodyBytes), meHandler.UpdateProfile)
	api.PATCH("/me/role", middlewares.RequireJSON(), meHandler.ChangeRole)
	api.GET("/me/saved/:kind", savedHandler.ListSaved)

	api.POST("/events/:id/save/:kind", savedHandler.Save)
	api.DELETE("/events/:id/save/:kind", savedHandler.Remove)

	// catalog writes need a creator or organization role
	writer := api.Group("/",
		authMW.RequireAnyRole(identity.RoleCreator, identity.RoleOrganization),
		middlewares.RequireJSON(),
		middlewares.MaxBodyBytes(1<<20),
	)
	writer.POST("/events", eventsHandler.CreateEvent)
	writer.PUT("/events/:id", eventsHandler.UpdateEvent)
	writer.DELETE("/events/:id", eventsHandler.DeleteEvent)

	return r
}
