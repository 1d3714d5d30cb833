package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"sitepilot/internal/models"
)

type Claims struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	ClientType string `json:"clientType"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a credential for user on the given client type.
func GenerateJWT(secret string, user models.User, clientType string, ttl time.Duration) (string, error) {
	if clientType == "" {
		clientType = string(user.ClientType)
	}
	now := time.Now()
	claims := Claims{
		UserID:     user.ID,
		Role:       string(user.Role),
		ClientType: clientType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT parses and validates a token signed by GenerateJWT.
func ParseJWT(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user")
	}

	return claims, nil
}
