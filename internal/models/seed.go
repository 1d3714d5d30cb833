package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	console "sitepilot/internal/utils/logger"
)

var log = console.New("SEEDER")

// ErrUserNotFound is returned by user stores when no user matches.
var ErrUserNotFound = errors.New("user not found")

// UserStore is the subset of persistence needed to seed users.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
}

// AdminSeed describes the bootstrap administrator.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// AdminSeedFromEnv reads ADMIN_EMAIL, ADMIN_PASSWORD and ADMIN_NAME.
func AdminSeedFromEnv() (AdminSeed, error) {
	email, ok := os.LookupEnv("ADMIN_EMAIL")
	if !ok {
		return AdminSeed{}, fmt.Errorf("ADMIN_EMAIL not set")
	}
	password, ok := os.LookupEnv("ADMIN_PASSWORD")
	if !ok {
		return AdminSeed{}, fmt.Errorf("ADMIN_PASSWORD not set")
	}
	name := os.Getenv("ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}
	return AdminSeed{Email: email, Password: password, Name: name}, nil
}

// HashPassword hashes a plain password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword compares a bcrypt hash with a plain password.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// EnsureAdmin creates the administrator unless a user with that email exists.
// It reports whether a user was created.
func EnsureAdmin(ctx context.Context, users UserStore, seed AdminSeed) (bool, error) {
	seed.Email = strings.ToLower(strings.TrimSpace(seed.Email))
	if seed.Email == "" || seed.Password == "" {
		return false, fmt.Errorf("admin email and password are required")
	}

	existing, err := users.GetUserByEmail(ctx, seed.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		log.Info("Admin user already exists: %s", seed.Email)
		return false, nil
	}

	hashed, err := HashPassword(seed.Password)
	if err != nil {
		return false, err
	}

	user := &User{
		Email:      seed.Email,
		Password:   hashed,
		Name:       seed.Name,
		Role:       UserRoleAdmin,
		ClientType: ClientWeb,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Success("Created admin user %s", seed.Email)
	return true, nil
}
