package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/models"
	"sitepilot/internal/utils"
	"sitepilot/internal/utils/logger"
)

var log = logger.New("auth_middleware")

// TokenCookie is the cookie browsers may carry the credential in.
const TokenCookie = "auth_token"

const (
	ctxUser      = "user"
	ctxPrincipal = "principal"
)

// UserLookup confirms the token's user still exists.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type AuthMiddleware struct {
	jwtSecret string
	users     UserLookup
}

func NewAuthMiddleware(jwtSecret string, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		users:     users,
	}
}

// TokenFromRequest reads the credential from the Authorization header, then
// the token query parameter, then the auth cookie.
func TokenFromRequest(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return strings.TrimSpace(parts[1])
		}
	}
	if token := c.QueryParam("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// Authenticate resolves a token to its user and principal. The role is taken
// from the stored user; the client type from the token, defaulting to web.
func (m *AuthMiddleware) Authenticate(ctx context.Context, token string) (*models.User, access.Principal, error) {
	if token == "" {
		return nil, access.Principal{}, apperr.Unauthenticated("Authentication required")
	}

	claims, err := utils.ParseJWT(m.jwtSecret, token)
	if err != nil {
		log.Debug("Rejected token: %v", err)
		return nil, access.Principal{}, apperr.Unauthenticated("Invalid or expired token")
	}

	user, err := m.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, access.Principal{}, apperr.Unauthenticated("User not found")
	}
	if err != nil {
		return nil, access.Principal{}, err
	}

	clientType := claims.ClientType
	if clientType == "" {
		clientType = string(models.ClientWeb)
	}
	return user, access.NewPrincipal(user.ID, string(user.Role), clientType), nil
}

// Middleware rejects unauthenticated requests and stores the caller on the context.
func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, principal, err := m.Authenticate(c.Request().Context(), TokenFromRequest(c))
			if err != nil {
				return err
			}

			c.Set(ctxUser, user)
			c.Set(ctxPrincipal, principal)
			c.SetRequest(c.Request().WithContext(access.WithPrincipal(c.Request().Context(), principal)))
			return next(c)
		}
	}
}

// GetPrincipal returns the authenticated caller, or the zero principal which
// every capability check rejects.
func GetPrincipal(c echo.Context) access.Principal {
	if p, ok := c.Get(ctxPrincipal).(access.Principal); ok {
		return p
	}
	return access.Principal{}
}

func GetUser(c echo.Context) *models.User {
	if u, ok := c.Get(ctxUser).(*models.User); ok {
		return u
	}
	return nil
}

// GetUserID Helper functions to get values from context
func GetUserID(c echo.Context) string {
	return GetPrincipal(c).ID
}
