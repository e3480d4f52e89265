// Package server contains HTTP and WebSocket handlers for the feed API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "jobfeed/docs" // swagger docs
	"jobfeed/internal/cache"
	"jobfeed/internal/config"
	"jobfeed/internal/database"
	"jobfeed/internal/middleware"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"
	"jobfeed/internal/repository"
	"jobfeed/internal/service"
	"jobfeed/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	accountRepo    repository.AccountRepository
	moderationRepo repository.ModerationRepository
	identity       service.IdentityProvider
	media          *storage.DiskStore
	notifier       *notifications.Notifier
	hub            *notifications.FeedHub

	postService       *service.PostService
	engagementService *service.EngagementService
	moderationService *service.ModerationService
	feedService       *service.FeedService
	scheduler         *service.Scheduler
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests and cmd/feedctl use it to share a DB handle. redisClient may be nil:
// caching, pub/sub and rate limiting are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	media := storage.NewDiskStore(cfg.MediaDir, cfg.MediaBaseURL, cfg.MediaMaxUploadSize)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("jobfeed-api"),
		postRepo:       repository.NewPostRepository(db, cfg.MutationMaxRetries),
		commentRepo:    repository.NewCommentRepository(db),
		accountRepo:    repository.NewAccountRepository(db),
		moderationRepo: repository.NewModerationRepository(db),
		media:          media,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewFeedHub(),
	}
	s.identity = service.NewAccountIdentity(s.accountRepo)

	s.engagementService = service.NewEngagementService(s.postRepo, s.commentRepo, s.identity, s.notifier)
	s.postService = service.NewPostService(s.postRepo, s.accountRepo, s.identity, s.media, s.notifier, s.engagementService)
	s.moderationService = service.NewModerationService(s.postRepo, s.moderationRepo, s.identity, s.notifier)
	s.feedService = service.NewFeedService(s.postRepo, cfg.TrendingCacheTTL)
	s.scheduler = service.NewScheduler(s.postRepo, s.notifier, cfg.SchedulerInterval, cfg.SchedulerBatchSize)

	return s, nil
}

// Scheduler exposes the scheduled-publishing worker, e.g. for one-off sweeps.
func (s *Server) Scheduler() *service.Scheduler {
	return s.scheduler
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))

	app.Use(middleware.RequestTimeout(s.config.RequestTimeout))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static(s.media.BaseURL(), s.media.Dir())

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	posts := api.Group("/posts")
	posts.Get("/", s.OptionalAuth(), s.GetPosts)
	posts.Post("/", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/like", s.AuthRequired(), s.LikePost)
	posts.Get("/:id/likes", s.GetPostLikes)
	posts.Post("/:id/share", s.AuthRequired(), s.SharePost)
	posts.Post("/:id/click", middleware.RateLimit(
		s.redis, 60, time.Minute, "click"), s.ClickPost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Put("/:id/comments/:commentId", s.AuthRequired(), s.UpdateComment)
	posts.Post("/:id/comments/:commentId/like", s.AuthRequired(), s.LikeComment)
	posts.Post("/:id/comments/:commentId/replies", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateReply)
	posts.Get("/:id", s.OptionalAuth(), s.GetPost)
	posts.Put("/:id", s.AuthRequired(), s.UpdatePost)
	posts.Delete("/:id", s.AuthRequired(), s.DeletePost)

	feed := api.Group("/feed")
	feed.Get("/trending", s.GetTrending)
	feed.Get("/category/:category", s.GetCategoryFeed)
	feed.Get("/search", middleware.RateLimit(
		s.redis, 30, time.Minute, "search"), s.SearchFeed)

	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Get("/posts", s.GetModerationQueue)
	admin.Get("/posts/:id/moderation", s.GetModerationHistory)
	admin.Post("/posts/:id/moderate", s.ModeratePost)

	api.Get("/ws/feed", s.OptionalAuth(), s.FeedSocketUpgrade, s.FeedSocket())
}

const readinessTimeout = 5 * time.Second

// LivenessCheck answers as long as the process serves HTTP.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

// readiness is the /health/ready body.
type readiness struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Connections int               `json:"connections"`
	Time        time.Time         `json:"time"`
}

func probe(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// ReadinessCheck pings the database and Redis. Only the database gates
// readiness; without Redis the feed still serves from the database.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	body := readiness{
		Status:      "healthy",
		Checks:      map[string]string{"redis": "unavailable"},
		Connections: s.hub.Count(),
		Time:        time.Now().UTC(),
	}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	body.Checks["database"] = probe(err)
	if s.redis != nil {
		body.Checks["redis"] = probe(s.redis.Ping(ctx).Err())
	}

	if err != nil {
		body.Status = "unhealthy"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return c.JSON(body)
}

// NewApp builds the fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	bodyLimit := s.config.MediaMaxUploadSize
	if bodyLimit <= 0 {
		bodyLimit = 10
	}
	app := fiber.New(fiber.Config{
		AppName:   "jobfeed API",
		BodyLimit: (bodyLimit*4 + 1) << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: codeForStatus(fe.Code)})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithAppError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start wires the live feed, launches the scheduler and serves HTTP until
// Shutdown is called.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start feed wiring", slog.String("error", err.Error()))
			}
		}()
	}

	if s.config.SchedulerEnabled {
		go s.scheduler.Run(s.shutdownCtx)
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// stops the scheduler and the Redis subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down feed hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
