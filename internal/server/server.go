// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "artenis/docs" // swagger docs
	"artenis/internal/bootstrap"
	"artenis/internal/cache"
	"artenis/internal/config"
	"artenis/internal/featureflags"
	"artenis/internal/middleware"
	"artenis/internal/models"
	"artenis/internal/moderation"
	"artenis/internal/notifications"
	"artenis/internal/ranking"
	"artenis/internal/repository"
	"artenis/internal/service"
	"artenis/internal/storage"

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

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	artistRepo  repository.ArtistRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	bookingRepo repository.BookingRepository

	tokens       cache.TokenStore
	media        storage.ObjectStore
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	authService    *service.AuthService
	userService    *service.UserService
	followService  *service.FollowService
	artistService  *service.ArtistService
	postService    *service.PostService
	commentService *service.CommentService
	bookingService *service.BookingService
	mediaService   *service.MediaService
}

// NewServer initializes the runtime (database, Redis, development
// fixtures) and builds a Server on it.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedDemoData: cfg.SeedDemoData})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	weights := ranking.DefaultWeights()
	if cfg.RankingWeightsFile != "" {
		w, err := ranking.LoadWeights(cfg.RankingWeightsFile)
		if err != nil {
			return nil, fmt.Errorf("load ranking weights: %w", err)
		}
		weights = w
	}

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("artenis-api"),
		userRepo:       repository.NewUserRepository(db),
		followRepo:     repository.NewFollowRepository(db),
		artistRepo:     repository.NewArtistRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		bookingRepo:    repository.NewBookingRepository(db),
		media:          store,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if redisClient != nil {
		s.tokens = cache.NewRedisTokenStore(redisClient)
	} else {
		s.tokens = cache.NewMemoryTokenStore()
	}

	s.authService = service.NewAuthService(s.userRepo, s.artistRepo, s.tokens, service.AuthConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL(),
		RefreshTTL: cfg.RefreshTokenTTL(),
	})
	s.userService = service.NewUserService(s.userRepo, s.followRepo, s.artistRepo)
	s.followService = service.NewFollowService(s.followRepo, s.userRepo, s.notifier)
	s.artistService = service.NewArtistService(s.artistRepo, s.userRepo)
	s.mediaService = service.NewMediaService(store, cfg.MediaMaxUploadMB)
	s.postService = service.NewPostService(service.PostServiceDeps{
		Posts:          s.postRepo,
		Users:          s.userRepo,
		Scorer:         ranking.NewScorer(weights),
		Detector:       moderation.NewDetector(cfg.ModerationKeywordList()),
		Flags:          s.featureFlags,
		Media:          s.mediaService,
		Notifier:       s.notifier,
		CandidateLimit: cfg.FeedCandidateLimit,
	})
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo, s.userRepo, s.notifier)
	s.bookingService = service.NewBookingService(s.bookingRepo, s.userRepo, s.artistRepo, s.notifier)

	return s, nil
}

const (
	// globalRateLimit is the per-IP request budget per minute across the API.
	globalRateLimit = 100
	devOrigins      = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	corsHeaders     = "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version"
)

// SetupMiddleware installs the global chain: recovery, request ids, tracing,
// metrics, security headers, request logging, CORS and the per-IP limiter.
// CORS sits before the limiter so a 429 still carries CORS headers, and
// preflights never count against the budget.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = devOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     corsHeaders,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	app.Use(limiter.New(limiter.Config{
		Max:          globalRateLimit,
		Expiration:   time.Minute,
		Next:         func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			middleware.RateLimitRejections.WithLabelValues("global").Inc()
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitError("Too many requests, please try again later"))
		},
	}))
}

// SetupRoutes configures all routes for the application. Numeric path
// parameters carry an <int> constraint so literal segments like
// /users/profile never fall through to /users/:id.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")
	authed := s.AuthRequired()

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Artenis Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Objects of the in-process store are served by the API itself.
	if mem, ok := s.media.(*storage.MemoryStore); ok {
		app.Get("/media/*", s.ServeMedia(mem))
	}

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", middleware.RateLimit(s.redis, 30, 5*time.Minute, "refresh"), s.Refresh)
	auth.Post("/logout", s.Logout)

	users := api.Group("/users")
	users.Post("/register", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	users.Get("/profile", authed, s.GetMyProfile)
	users.Patch("/profile", authed, s.UpdateMyProfile)
	users.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "user_search"), s.SearchUsers)
	users.Get("/me/artist-eligibility", authed, s.GetArtistEligibility)
	users.Post("/follow/:userId<int>", authed, middleware.RateLimit(s.redis, 30, time.Minute, "follow"), s.FollowUser)
	users.Delete("/follow/:userId<int>", authed, s.UnfollowUser)
	users.Get("/:userId<int>/followers", s.GetFollowers)
	users.Get("/:userId<int>/following", s.GetFollowing)
	users.Get("/:id<int>/reputation", s.GetUserReputation)
	users.Patch("/:id<int>/role", authed, s.ChangeUserRole)
	users.Delete("/:id<int>", authed, s.DeactivateUser)
	users.Get("/:id<int>", s.GetUserProfile)

	posts := api.Group("/posts")
	posts.Get("/feed", authed, s.GetFeed)
	posts.Get("/me/saved", authed, s.GetSavedPosts)
	posts.Get("/user/:userId<int>", s.GetUserPosts)
	posts.Post("/", authed, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id<int>/comments", s.GetComments)
	posts.Post("/:id<int>/comments", authed, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Delete("/:id<int>/comments/:commentId<int>", authed, s.DeleteComment)
	posts.Get("/:id<int>/suggested-tags", s.GetSuggestedTags)
	posts.Post("/:id<int>/like", authed, s.LikePost)
	posts.Delete("/:id<int>/like", authed, s.UnlikePost)
	posts.Post("/:id<int>/save", authed, s.SavePost)
	posts.Delete("/:id<int>/save", authed, s.UnsavePost)
	posts.Post("/:id<int>/share", authed, s.SharePost)
	posts.Post("/:id<int>/report", authed, middleware.RateLimit(s.redis, 5, 10*time.Minute, "report_post"), s.ReportPost)
	posts.Patch("/:id<int>/status", authed, s.ChangePostStatus)
	posts.Put("/:id<int>", authed, s.UpdatePost)
	posts.Delete("/:id<int>", authed, s.DeletePost)
	posts.Get("/:id<int>", s.GetPost)

	api.Post("/media", authed, middleware.RateLimit(s.redis, 20, 10*time.Minute, "media_upload"), s.UploadMedia)

	bookings := api.Group("/bookings")
	bookings.Post("/appointments", authed, middleware.RateLimit(s.redis, 10, time.Hour, "book_appointment"), s.CreateAppointment)
	bookings.Get("/appointments", authed, s.ListAppointments)
	bookings.Patch("/appointments/:id<int>/confirm", authed, s.ConfirmAppointment)
	bookings.Patch("/appointments/:id<int>/complete", authed, s.CompleteAppointment)
	bookings.Delete("/appointments/:id<int>", authed, s.CancelAppointment)
	bookings.Post("/quotes", authed, middleware.RateLimit(s.redis, 10, time.Hour, "request_quote"), s.RequestQuote)
	bookings.Get("/quotes", authed, s.ListQuotes)
	bookings.Patch("/quotes/:id<int>", authed, s.UpdateQuote)

	artists := api.Group("/artists")
	artists.Put("/me", authed, s.UpdateMyArtistProfile)
	artists.Get("/:userId<int>", s.GetArtistProfile)

	api.Post("/ws/ticket", authed, s.IssueWSTicket)
	api.Get("/ws", authed, s.WebsocketHandler())

	admin := api.Group("/admin", authed, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/moderation/posts", s.GetModerationQueue)
	admin.Patch("/posts/:id<int>/promote", s.PromotePost)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("User no longer exists"))
			}
			return models.RespondWithAppError(c, err)
		}
		if !user.HasPermission(models.PermAdminister) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired accepts a single-use websocket ticket or a bearer access
// token whose JTI has not been revoked.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ticket := c.Query("ticket"); ticket != "" {
			userID, err := s.consumeWSTicket(c.UserContext(), ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			setAuthenticatedUser(c, userID)
			return c.Next()
		}

		tokenString := middleware.BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseAccessToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if claims.JTI != "" {
			revoked, err := s.tokens.IsRevoked(c.UserContext(), claims.JTI)
			if err != nil {
				middleware.Logger.WarnContext(c.UserContext(), "revocation check failed",
					slog.String("error", err.Error()))
			}
			if revoked {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("accessClaims", claims)
		setAuthenticatedUser(c, claims.UserID)
		return c.Next()
	}
}

func setAuthenticatedUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// optionalUserID resolves the viewer of a public route without enforcing
// authentication.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	tokenString := middleware.BearerToken(c)
	if tokenString == "" {
		return 0
	}
	claims, err := middleware.ParseAccessToken(s.config.JWTSecret, tokenString)
	if err != nil {
		return 0
	}
	return claims.UserID
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName:      "Artenis API",
		BodyLimit:    service.MaxFilesPerUpload*int(s.config.MaxUploadBytes()) + 1<<20,
		ErrorHandler: s.errorHandler,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()),
					slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
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

	middleware.Logger.Info("server shutdown complete")
	return nil
}
