package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/api/middleware"
	"sitepilot/internal/api/validator"
	"sitepilot/internal/apperr"
	"sitepilot/internal/models"
	"sitepilot/internal/store"
	"sitepilot/internal/utils"
	"sitepilot/internal/utils/logger"
)

// UserStore is the persistence the auth endpoints need.
type UserStore interface {
	models.UserStore
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type AuthHandler struct {
	users  UserStore
	secret string
	ttl    time.Duration
	log    *logger.Logger
}

func NewAuthHandler(users UserStore, secret string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, ttl: ttl, log: logger.New("AuthHandler")}
}

// Register creates an account. Administrators are only created by the seeder.
// @Summary Register a new user
// @Description Register a new user with email, password and name. The role defaults to viewer.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.RegisterRequest true "Registration details"
// @Success 201 {object} map[string]interface{} "User registered successfully"
// @Failure 400 {object} map[string]interface{} "Validation error or email exists"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req validator.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	role := models.UserRole(req.Role)
	switch role {
	case "":
		role = models.UserRoleViewer
	case models.UserRoleAdmin:
		return apperr.Invalid("Administrators cannot self-register")
	}

	hashed, err := models.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := &models.User{
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Password:   hashed,
		Name:       req.Name,
		Role:       role,
		ClientType: models.ClientWeb,
	}
	if err := h.users.CreateUser(c.Request().Context(), user); err != nil {
		if store.IsDuplicate(err) {
			return apperr.Invalid("User already exists")
		}
		return h.log.Error("Failed to create user %s", err, user.Email)
	}

	h.log.Success("Registered user %s", user.Email)
	return respond(c, http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"userId":  user.ID,
	})
}

// Login exchanges credentials for a token bound to the caller's client type.
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.LoginRequest true "Credentials"
// @Success 200 {object} map[string]interface{} "Token and user"
// @Failure 401 {object} map[string]interface{} "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req validator.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.GetUserByEmail(c.Request().Context(), req.Email)
	if errors.Is(err, models.ErrUserNotFound) {
		return apperr.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return err
	}
	if !user.CheckPassword(req.Password) {
		h.log.Debug("Password mismatch for %s", req.Email)
		return apperr.Unauthenticated("Invalid credentials")
	}

	clientType := req.ClientType
	if clientType == "" {
		clientType = string(models.ClientWeb)
	}
	token, err := utils.GenerateJWT(h.secret, *user, clientType, h.ttl)
	if err != nil {
		return h.log.Error("Failed to sign token for %s", err, user.Email)
	}

	return respond(c, http.StatusOK, echo.Map{
		"token": token,
		"user": echo.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// GetMe returns the caller and the permissions resolved for this token.
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "User and permissions"
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c echo.Context) error {
	user := middleware.GetUser(c)
	if user == nil {
		return apperr.Unauthenticated("Authentication required")
	}
	principal := middleware.GetPrincipal(c)
	return respond(c, http.StatusOK, echo.Map{
		"user":        user,
		"clientType":  principal.ClientType,
		"permissions": principal.Permissions.List(),
	})
}
