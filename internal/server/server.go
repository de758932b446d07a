// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "bloghub/docs" // swagger docs
	"bloghub/internal/cache"
	"bloghub/internal/config"
	"bloghub/internal/database"
	"bloghub/internal/featureflags"
	"bloghub/internal/mail"
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/notifications"
	"bloghub/internal/repository"
	"bloghub/internal/service"
	"bloghub/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
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

	sessions     *middleware.SessionManager
	limiter      *middleware.Limiter
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	blobs        *storage.DiskStore

	authService         *service.AuthService
	accessService       *service.AccessService
	notificationService *service.NotificationService
	engagementService   *service.EngagementService
	moderationService   *service.ModerationService
	postService         *service.PostService
	commentService      *service.CommentService
	userService         *service.UserService
}

// NewServer connects to the database and Redis and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	// Redis is optional; a nil client disables caching, idle sessions and realtime push.
	return NewServerWithDeps(cfg, db, cache.InitRedis(cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	blobs, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload store: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	moderationRepo := repository.NewModerationRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("bloghub-api"),
		sessions:       middleware.NewSessionManager(cfg.SessionSecret, redisClient, cfg.SessionIdleTimeout, cfg.SessionMaxAge),
		limiter:        middleware.NewLimiter(redisClient, rateLimitsEnabled(cfg)),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		blobs:          blobs,
	}

	media := service.NewMediaService(blobs, cfg.MaxUploadSizeMB)
	s.notificationService = service.NewNotificationService(notificationRepo, s.notifier)
	s.moderationService = service.NewModerationService(moderationRepo, blobs)
	s.authService = service.NewAuthService(userRepo, s.sessions, mail.New(cfg), cfg.PasswordResetTTL, cfg.PublicBaseURL)
	s.accessService = service.NewAccessService(userRepo, s.notifier)
	s.engagementService = service.NewEngagementService(engagementRepo, postRepo, userRepo, s.notificationService)
	s.postService = service.NewPostService(postRepo, commentRepo, engagementRepo, userRepo, media, s.moderationService, s.featureFlags)
	s.commentService = service.NewCommentService(commentRepo, postRepo, userRepo, s.notificationService, s.featureFlags)
	s.userService = service.NewUserService(userRepo, postRepo, media)

	return s, nil
}

func rateLimitsEnabled(cfg *config.Config) bool {
	return cfg.Env != "development" && cfg.Env != "test"
}

// NewApp builds the fiber application with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "BlogHub API",
		BodyLimit:    (s.config.MaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: ErrorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// ErrorHandler answers errors that escape handlers. AppErrors keep their
// status; fiber errors keep their code; anything else is a logged 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, status, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: !s.config.IsProduction()}))
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Static(storage.PublicPrefix, s.blobs.Root())

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	authRequired := s.sessions.AuthRequired()

	auth := api.Group("/auth")
	auth.Post("/register", s.limiter.Middleware("register", 5, 10*time.Minute, middleware.FailOpen), s.Register)
	auth.Post("/login", s.limiter.Middleware("login", 10, 5*time.Minute, middleware.FailClosed), s.Login)
	auth.Post("/logout", s.Logout)
	auth.Post("/forgot-password", s.limiter.Middleware("forgot_password", 3, 15*time.Minute, middleware.FailClosed), s.ForgotPassword)
	auth.Post("/reset-password", s.ResetPassword)
	auth.Get("/me", authRequired, s.Me)
	auth.Put("/password", authRequired, s.ChangePassword)

	// Specific /posts routes before the generic /:id ones.
	posts := api.Group("/posts")
	posts.Get("/", s.Feed)
	posts.Get("/trending", s.GetTrending)
	posts.Post("/", authRequired, s.limiter.Middleware("create_post", 10, 5*time.Minute, middleware.FailOpen), s.CreatePost)
	posts.Get("/:id/comments", s.ListComments)
	posts.Post("/:id/comments", s.limiter.Middleware("create_comment", 5, time.Minute, middleware.FailOpen), s.CreateComment)
	posts.Post("/:id/like", authRequired, s.ToggleLike)
	posts.Post("/:id/bookmark", authRequired, s.ToggleBookmark)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", authRequired, s.UpdatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)

	comments := api.Group("/comments")
	comments.Get("/:id/replies", s.ListReplies)
	comments.Delete("/:id", authRequired, s.DeleteComment)

	api.Get("/dashboard", authRequired, s.GetDashboard)
	api.Get("/bookmarks", authRequired, s.ListBookmarks)
	api.Post("/access/request", authRequired, s.RequestAccess)

	users := api.Group("/users")
	users.Get("/me", authRequired, s.GetMyProfile)
	users.Put("/me", authRequired, s.UpdateMyProfile)
	users.Post("/me/image", authRequired, s.UploadProfileImage)
	users.Get("/:id", s.GetUserProfile)

	notes := api.Group("/notifications", authRequired)
	notes.Get("/", s.ListNotifications)
	notes.Get("/unread-count", s.UnreadCount)
	notes.Post("/read-all", s.MarkAllNotificationsRead)
	notes.Post("/:id/read", s.MarkNotificationRead)

	api.Get("/ws/notifications", authRequired, s.NotificationsWebSocket())

	admin := api.Group("/admin", authRequired, s.StaffRequired())
	admin.Get("/access-requests", s.ListAccessRequests)
	admin.Post("/access-requests/backfill", s.BackfillAccessRequests)
	admin.Post("/access-requests/:id/approve", s.ApproveAccess)
	admin.Post("/access-requests/:id/reject", s.RejectAccess)
	admin.Get("/users", s.AdminListUsers)
	admin.Get("/staff", s.ListStaff)
	admin.Put("/users/:id/role", s.AdminRequired(), s.SetUserRole)
	admin.Delete("/users/:id", s.AdminDeleteUser)
	admin.Get("/posts", s.AdminListPosts)
	admin.Post("/posts/:id/admin-choice", s.ToggleAdminChoice)
	admin.Delete("/posts/:id", s.AdminDeletePost)
	admin.Get("/notifications", s.AdminListNotifications)
	admin.Post("/notifications", s.BroadcastNotification)
	admin.Post("/notifications/:id/important", s.ToggleNotificationImportant)
	admin.Delete("/notifications/:id", s.DeleteNotification)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// HealthResponse is the liveness/readiness payload.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Time   time.Time         `json:"time"`
}

// LivenessCheck godoc
// @Summary Liveness probe
// @Tags health
// @Success 200 {object} HealthResponse
// @Router /health/live [get]
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "up", Time: time.Now()})
}

// ReadinessCheck godoc
// @Summary Readiness probe (database and Redis)
// @Tags health
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health/ready [get]
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	// Redis degrades features but does not make the API unusable.
	status, overall := fiber.StatusOK, "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status, overall = fiber.StatusServiceUnavailable, "unhealthy"
	}
	return c.Status(status).JSON(HealthResponse{
		Status: overall,
		Checks: map[string]string{"database": dbStatus, "redis": redisStatus},
		Time:   time.Now(),
	})
}

// Start wires realtime delivery and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("Notification wiring failed", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("HTTP shutdown failed", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("Notification hub shutdown failed", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("Closing database failed", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("Closing redis failed", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
