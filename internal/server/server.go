// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "circle/docs" // swagger docs
	"circle/internal/async"
	"circle/internal/bootstrap"
	"circle/internal/cache"
	"circle/internal/config"
	"circle/internal/mail"
	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/notifications"
	"circle/internal/repository"
	"circle/internal/service"
	"circle/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	usernameIndexSize = 4096
	usernameIndexTTL  = 30 * time.Minute
	shutdownPoolWait  = 5 * time.Second
)

// Deps are the already-initialized collaborators a Server is built from.
// Redis and Mailer may be nil.
type Deps struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Store  storage.BlobStore
	Mailer mail.Sender
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.BlobStore
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	notifier  *notifications.Notifier
	hub       *notifications.Hub
	publisher *notifications.Publisher
	pool      *async.Pool

	authService         *service.AuthService
	userService         *service.UserService
	friendService       *service.FriendService
	postService         *service.PostService
	commentService      *service.CommentService
	feedService         *service.FeedService
	storyService        *service.StoryService
	notificationService *service.NotificationService
	sweeper             *service.StorySweeper
}

// NewServer connects the runtime dependencies described by cfg and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, Deps{
		DB:     rt.DB,
		Redis:  rt.Redis,
		Store:  rt.Store,
		Mailer: rt.Mailer,
	})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server requires a database")
	}
	if deps.Store == nil {
		return nil, errors.New("server requires a blob store")
	}

	pool, err := async.New(cfg.AsyncPoolSize)
	if err != nil {
		return nil, fmt.Errorf("async pool init failed: %w", err)
	}

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		store:          deps.Store,
		promMiddleware: middleware.InitMetrics("circle-api"),
		hub:            notifications.NewHub(),
		pool:           pool,
	}
	if deps.Redis != nil {
		s.notifier = notifications.NewNotifier(deps.Redis)
	}
	s.publisher = notifications.NewPublisher(s.hub, s.notifier)

	userRepo := repository.NewUserRepository(deps.DB)
	postRepo := repository.NewPostRepository(deps.DB)
	storyRepo := repository.NewStoryRepository(deps.DB)
	friendships := repository.NewFriendshipRepository(deps.DB)
	media := service.NewMediaService(deps.Store, cfg.MediaMaxUploadBytes())

	s.notificationService = service.NewNotificationService(
		repository.NewNotificationRepository(deps.DB), s.publisher, s.pool)
	sink := s.notificationService

	s.authService = service.NewAuthService(userRepo, deps.Redis, deps.Mailer, cfg.JWTSecret, cfg.FrontendURL)
	s.userService = service.NewUserService(userRepo, friendships, media, deps.Redis)
	s.friendService = service.NewFriendService(
		repository.NewFriendRequestRepository(deps.DB),
		friendships,
		userRepo,
		sink,
		s.publisher,
	)
	s.feedService = service.NewFeedService(postRepo, storyRepo, s.friendService)
	usernames := cache.NewUsernameIndex(usernameIndexSize, usernameIndexTTL)
	s.postService = service.NewPostService(postRepo, userRepo, sink, media, usernames)
	s.commentService = service.NewCommentService(repository.NewCommentRepository(deps.DB), postRepo, userRepo, sink, usernames)
	s.storyService = service.NewStoryService(storyRepo, media, s.feedService)
	s.sweeper = service.NewStorySweeper(storyRepo, media, cfg.StorySweepInterval)

	return s, nil
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "Circle API",
		BodyLimit: int(s.config.MediaMaxUploadBytes()) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return models.RespondWithError(c, fe.Code, errors.New(fe.Message))
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "path", c.Path(), "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if local, ok := s.store.(*storage.LocalStore); ok {
		app.Static("/uploads", local.Root())
	}

	api := app.Group("/api")
	api.Get("/", s.HealthCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Circle Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/forgot-password", middleware.RateLimit(s.redis, 3, 10*time.Minute, "forgot_password"), s.ForgotPassword)
	auth.Put("/reset-password/:token", s.ResetPassword)
	auth.Put("/change-password", s.AuthRequired(), s.ChangePassword)

	protected := api.Group("", s.AuthRequired())

	// User and friend routes. Specific paths come before the generic /:username.
	users := protected.Group("/users")
	users.Get("/profile/me", s.GetMyProfile)
	users.Put("/profile", s.UpdateMyProfile)
	users.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "user_search"), s.SearchUsers)
	users.Get("/friend-requests", s.GetReceivedRequests)
	users.Get("/sent-requests", s.GetSentRequests)
	users.Post("/friend-request/:userId", middleware.RateLimit(
		s.redis, 20, 5*time.Minute, "friend_request"), s.SendFriendRequest)
	users.Put("/friend-request/:requestId/accept", s.AcceptFriendRequest)
	users.Put("/friend-request/:requestId/decline", s.DeclineFriendRequest)
	users.Delete("/friend-request/:requestId/cancel", s.CancelFriendRequest)
	users.Get("/friend-status/:userId", s.GetFriendshipStatus)
	users.Delete("/friends/:friendId", s.RemoveFriend)
	users.Get("/:userId<int>/friends", s.GetFriends)
	users.Get("/:username", s.GetUserProfile)

	// Post routes
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/feed", s.GetFeed)
	posts.Get("/user/:username", s.GetUserPosts)
	posts.Put("/:id/like", s.LikePost)
	posts.Get("/:postId/comments", s.GetComments)
	posts.Post("/:postId/comments", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	// Comment routes
	comments := protected.Group("/comments")
	comments.Put("/:id/like", s.LikeComment)
	comments.Delete("/:id", s.DeleteComment)

	// Story routes
	stories := protected.Group("/stories")
	stories.Get("/", s.GetStories)
	stories.Post("/", middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_story"), s.CreateStory)
	stories.Post("/:id/view", s.ViewStory)

	// Notification routes
	notes := protected.Group("/notifications")
	notes.Get("/", s.GetNotifications)
	notes.Put("/read-all", s.MarkAllNotificationsRead)
	notes.Put("/:id/read", s.MarkNotificationRead)
	notes.Delete("/:id", s.DeleteNotification)

	// Realtime event stream
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())
}

// HealthCheck is a simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional, so its
// absence degrades the report without failing it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"connections": s.hub.ConnectionCount(),
		"time":        time.Now(),
	})
}

// AuthRequired returns the authentication middleware. The token comes from a
// Bearer header, or from the token query parameter on the WebSocket route
// where browsers cannot set headers.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = strings.TrimSpace(parts[1])
		}
		if tokenString == "" && strings.HasPrefix(c.Path(), "/api/ws") {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Not authorized, no token"))
		}

		claims, err := s.authService.ParseToken(c.UserContext(), tokenString)
		if err != nil {
			return s.respondServiceError(c, err)
		}

		c.Locals("userID", claims.UserID)
		c.Locals("claims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), claims.UserID))

		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring", "hub", s.hub.Name(), "error", err)
			}
		}()
	}
	go s.sweeper.Run(s.shutdownCtx)

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
	}

	if err := s.pool.Release(shutdownPoolWait); err != nil {
		middleware.Logger.Warn("async pool did not drain", "error", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
