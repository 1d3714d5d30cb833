package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-advanced-admin/admin"
	admingorm "github.com/go-advanced-admin/orm-gorm"
	adminecho "github.com/go-advanced-admin/web-echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	authmw "sitepilot/internal/api/middleware"
	"sitepilot/internal/api/validator"
	"sitepilot/internal/apperr"
	"sitepilot/internal/config"
	"sitepilot/internal/handlers"
	"sitepilot/internal/models"
	"sitepilot/internal/orchestrator"
	"sitepilot/internal/realtime"
	console "sitepilot/internal/utils/logger"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Config       *config.Config
	DB           *gorm.DB // optional; enables the admin panel
	Users        handlers.UserStore
	Orchestrator *orchestrator.Orchestrator
	Hub          *realtime.Hub
	Reconciler   handlers.Reconciler // optional; enables /admin/reconcile
	UploadDir    string              // optional; serves locally stored briefs under /uploads
	Checks       map[string]HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	deps   Deps
	auth   *authmw.AuthMiddleware
}

var log = console.New("API-Server")

// NewServer @title Sitepilot API
// @version 1.0
// @description Backend for AI-assisted website projects.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func NewServer(deps Deps) *Server {
	cfg := deps.Config
	e := echo.New()
	e.HideBanner = true

	// Create custom validator
	e.Validator = validator.NewValidator()

	// Configure middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentLength},
		AllowCredentials: !allowsAnyOrigin(cfg.Server.CORSOrigins),
	}))
	e.Use(middleware.Secure())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: func(c echo.Context) bool { return c.Path() == "/ws" || c.Path() == "/metrics" },
	}))
	e.Use(middleware.BodyLimit("10M"))
	e.Use(requestLogger())

	// Custom error handler
	e.HTTPErrorHandler = customHTTPErrorHandler

	s := &Server{
		echo:   e,
		config: cfg,
		deps:   deps,
		auth:   authmw.NewAuthMiddleware(cfg.JWT.Secret, deps.Users),
	}

	if deps.DB != nil {
		if err := s.mountAdminPanel(); err != nil {
			log.Warn("Admin panel disabled: %v", err)
		}
	}

	s.registerRoutes()
	return s
}

// Handler exposes the router, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}

// apiRateLimiter limits each client IP to the configured number of requests per window.
func apiRateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		Burst:     cfg.Requests,
		ExpiresIn: cfg.Window,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests from this IP, please try again later")
		},
	})
}

func requestLogger() echo.MiddlewareFunc {
	reqLog := console.New("HTTP")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			reqLog.Debug("%s %s %d %s id=%s", v.Method, v.URIPath, v.Status, v.Latency, v.RequestID)
			return nil
		},
	})
}

func (s *Server) mountAdminPanel() error {
	gormIntegrator := admingorm.NewIntegrator(s.deps.DB)
	echoIntegrator := adminecho.NewIntegrator(s.echo.Group(""))

	// Only administrators reach the panel. The credential is checked per request
	// because a middleware group on the root prefix would also catch unknown paths.
	permissionChecker := func(request admin.PermissionRequest, ctx interface{}) (bool, error) {
		c, ok := ctx.(echo.Context)
		if !ok {
			return false, nil
		}
		_, principal, err := s.auth.Authenticate(c.Request().Context(), authmw.TokenFromRequest(c))
		if err != nil {
			return false, nil
		}
		return principal.IsAdmin(), nil
	}

	adminPanel, err := admin.NewPanel(gormIntegrator, echoIntegrator, permissionChecker, nil)
	if err != nil {
		return log.Error("Failed to create admin panel", err)
	}

	app, err := adminPanel.RegisterApp("Sitepilot", "Sitepilot Admin Panel", nil)
	if err != nil {
		return log.Error("Failed to register admin app", err)
	}
	for _, model := range []interface{}{&models.User{}, &models.Project{}, &models.Discussion{}} {
		if _, err := app.RegisterModel(model, nil); err != nil {
			return log.Error("Failed to register admin model %T", err, model)
		}
	}
	return nil
}

// Health check endpoint
func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	return c.JSON(code, map[string]interface{}{
		"success": code == http.StatusOK,
		"status":  status,
		"checks":  checks,
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// Custom HTTP error handler
func customHTTPErrorHandler(err error, c echo.Context) {
	var (
		code    = http.StatusInternalServerError
		message interface{}
		he      *echo.HTTPError
		ve      validator.ValidationErrors
		ae      *apperr.Error
	)

	switch {
	case errors.As(err, &ve):
		code = http.StatusBadRequest
		message = ve.Fields()
	case errors.As(err, &ae):
		code = apperr.HTTPStatus(err)
		message = apperr.PublicMessage(err)
		if ae.Kind == apperr.KindPartial || ae.Kind == apperr.KindInternal {
			_ = log.Error("%s %s failed", err, c.Request().Method, c.Path())
		}
	case errors.As(err, &he):
		code = he.Code
		message = he.Message
		if he.Internal != nil {
			log.Debug("%s %s: %v", c.Request().Method, c.Path(), he.Internal)
		}
	default:
		message = http.StatusText(code)
		_ = log.Error("%s %s failed", err, c.Request().Method, c.Path())
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]interface{}{
				"success": false,
				"error":   message,
				"code":    code,
				"time":    time.Now().Format(time.RFC3339),
			})
		}
		if err != nil {
			c.Echo().Logger.Error(err)
		}
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
