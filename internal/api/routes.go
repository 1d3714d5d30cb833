package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "sitepilot/docs/swagger"
	authmw "sitepilot/internal/api/middleware"
	"sitepilot/internal/apperr"
	"sitepilot/internal/handlers"
	"sitepilot/internal/routes"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Sitepilot server is running")
	})
	// Health check
	// @Summary Health check
	// @Description Check if the server and its dependencies are reachable
	// @Produce json
	// @Success 200 {object} map[string]interface{} "OK"
	// @Failure 503 {object} map[string]interface{} "A dependency is down"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)
	if s.deps.Hub != nil {
		s.echo.GET("/ws", s.serveSocket)
	}

	requireAuth := s.auth.Middleware()
	if s.deps.UploadDir != "" {
		s.echo.Group("/uploads", requireAuth, attachmentOnly).Static("/", s.deps.UploadDir)
	}

	// API v1 group
	base := s.echo.Group("/api/v1", apiRateLimiter(s.config.RateLimit))
	routes.SetupAuthRoutes(base, handlers.NewAuthHandler(s.deps.Users, s.config.JWT.Secret, s.config.JWT.Expiration), requireAuth)

	api := base.Group("", requireAuth)
	orch := s.deps.Orchestrator
	routes.SetupProjectRoutes(api, handlers.NewUploadHandler(0), handlers.NewProjectHandler(orch))
	routes.SetupDiscussionRoutes(api, handlers.NewDiscussionHandler(orch))
	routes.SetupCMSRoutes(api, handlers.NewCMSHandler(orch))
	routes.SetupAssistantRoutes(api, handlers.NewAssistantHandler(orch))
	if s.deps.Reconciler != nil {
		routes.SetupAdminRoutes(api, handlers.NewAdminHandler(s.deps.Reconciler))
	}
}

// attachmentOnly stops uploaded files from rendering on the API origin, where
// the auth cookie is in scope.
func attachmentOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderXContentTypeOptions, "nosniff")
		h.Set(echo.HeaderContentDisposition, "attachment")
		h.Set(echo.HeaderContentSecurityPolicy, "default-src 'none'; sandbox")
		return next(c)
	}
}

// serveSocket authenticates the handshake and hands the connection to the hub.
func (s *Server) serveSocket(c echo.Context) error {
	if !isWebSocketUpgrade(c.Request()) {
		return apperr.Invalid("Expected a websocket upgrade")
	}
	_, principal, err := s.auth.Authenticate(c.Request().Context(), authmw.TokenFromRequest(c))
	if err != nil {
		return err
	}
	if err := s.deps.Hub.Serve(c.Response(), c.Request(), principal); err != nil {
		log.Warn("Websocket upgrade failed: %v", err)
	}
	return nil
}
