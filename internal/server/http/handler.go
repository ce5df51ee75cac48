package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chessaroo/internal/server/core"
	"chessaroo/internal/server/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const rateLimitRate = 10 // req/sec

// Options carries the boundary settings the handlers need
type Options struct {
	DevMode             bool
	CORSOrigins         []string
	SessionCookieName   string
	SessionCookieSecure bool
	AdminCookieName     string
	AdminPassword       string
	AdminTTL            time.Duration
	Secret              []byte
	DeploymentTime      time.Time
}

// HTTPHandler handles HTTP requests and routes them to the service
type HTTPHandler struct {
	svc  *service.Service
	opts Options
	log  *zap.Logger
}

func NewHTTPHandler(svc *service.Service, log *zap.Logger, opts Options) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SessionCookieName == "" {
		opts.SessionCookieName = "chessaroo_session"
	}
	if opts.AdminCookieName == "" {
		opts.AdminCookieName = "chessaroo_admin_session"
	}
	if opts.AdminTTL <= 0 {
		opts.AdminTTL = time.Hour
	}
	if opts.DeploymentTime.IsZero() {
		opts.DeploymentTime = time.Now().UTC()
	}
	return &HTTPHandler{svc: svc, opts: opts, log: log}
}

func NewFiberApp(svc *service.Service, log *zap.Logger, opts Options) *fiber.App {
	h := NewHTTPHandler(svc, log, opts)

	app := fiber.New(fiber.Config{
		ErrorHandler: h.customErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	// Credentialed CORS needs explicit origins
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(h.opts.CORSOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: len(h.opts.CORSOrigins) > 0,
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	resolve := svc.ResolveSession

	api := app.Group("/api")
	api.Use(contentTypeValidator)

	auth := api.Group("/auth")
	auth.Post("/register", perMinuteLimit(5, "registrations"), h.RegisterHandler)
	auth.Post("/login", perMinuteLimit(10, "login attempts"), h.LoginHandler)
	auth.Post("/logout", h.LogoutHandler)
	auth.Get("/me", OptionalSession(resolve, h.opts.SessionCookieName), h.GetCurrentUserHandler)
	auth.Put("/update-profile", SessionRequired(resolve, h.opts.SessionCookieName), h.UpdateProfileHandler)
	auth.Put("/change-password", SessionRequired(resolve, h.opts.SessionCookieName), h.ChangePasswordHandler)

	api.Get("/deployment-info", h.DeploymentInfo)

	maxReq := rateLimitRate
	if h.opts.DevMode {
		maxReq = rateLimitRate * 2
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	owned := api.Group("", SessionRequired(resolve, h.opts.SessionCookieName), validationMiddleware)
	owned.Get("/games", h.ListGames)
	owned.Post("/games", h.CreateGame)
	owned.Get("/game/:id/moves", h.GetGameMoves)
	owned.Post("/game/:id/moves", h.AppendMove)
	owned.Put("/game/:id", h.UpdateGame)
	owned.Get("/create-sample-game", h.CreateSampleGame)
	owned.Post("/imported-games", perMinuteLimit(10, "imports"), h.ImportGame)
	owned.Get("/imported-games", h.ListImportedGames)
	owned.Get("/imported-games/:id", h.GetImportedGame)

	admin := app.Group("/admin", contentTypeValidator)
	admin.Post("/login", perMinuteLimit(5, "admin login attempts"), h.AdminLogin)
	admin.Post("/logout", h.AdminLogout)
	admin.Get("/status", h.AdminStatus)
	admin.Get("/users", AdminRequired(h.adminAuthenticated), h.AdminUsers)

	return app
}

func perMinuteLimit(max int, what string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d %s per minute allowed", max, what),
			})
		},
	})
}

// contentTypeValidator ensures POST and PUT requests carry JSON when they carry anything
func contentTypeValidator(c *fiber.Ctx) error {
	method := c.Method()
	if method == fiber.MethodPost || method == fiber.MethodPut {
		contentType := strings.ToLower(c.Get("Content-Type"))
		if contentType != "" && !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func (h *HTTPHandler) customErrorHandler(c *fiber.Ctx, err error) error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return c.Status(ce.Status).JSON(ce.Response())
	}

	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		response.Error = fe.Message

		// Map HTTP status to error codes
		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrNotFound
		case fiber.StatusBadRequest:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	} else {
		h.log.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(code).JSON(response)
}

// writeError answers with the typed outcome of a failed operation
func (h *HTTPHandler) writeError(c *fiber.Ctx, err error) error {
	var ce *core.Error
	if !errors.As(err, &ce) {
		h.log.Error("untyped service error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "internal server error",
			Code:  core.ErrInternalError,
		})
	}
	return c.Status(ce.Status).JSON(ce.Response())
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"time":    time.Now().Unix(),
		"storage": h.svc.GetStorageHealth(c.UserContext()),
	})
}

// DeploymentInfo reports the fixed process start time next to the current time
func (h *HTTPHandler) DeploymentInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"deploymentTime": h.opts.DeploymentTime.UTC().Format(time.RFC3339),
		"serverTime":     time.Now().UTC().Format(time.RFC3339),
	})
}

func ownerID(c *fiber.Ctx) string {
	userID, _ := c.Locals(localUserID).(string)
	return userID
}
