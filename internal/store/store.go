// Package store persists users, projects, discussions and their child records.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sitepilot/internal/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// Repository is the persistence boundary used by the orchestrator and the HTTP layer.
//
// Reads return detached copies; mutating a returned value never changes stored state.
type Repository interface {
	models.UserStore
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateProject(ctx context.Context, p *models.Project) error
	// GetProject returns the project with its applied changes in insertion order
	// and the ids of its discussions.
	GetProject(ctx context.Context, id string) (*models.Project, error)
	// ListProjects returns the projects created by ownerID, most recently updated first.
	ListProjects(ctx context.Context, ownerID string) ([]models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	// DeleteProject removes the project, its changes, its discussions and their messages atomically.
	DeleteProject(ctx context.Context, id string) error
	AppendChange(ctx context.Context, projectID string, change *models.AppliedChange) error

	// CreateDiscussion stores the discussion together with its initial messages atomically.
	CreateDiscussion(ctx context.Context, d *models.Discussion) error
	GetDiscussion(ctx context.Context, id string) (*models.Discussion, error)
	// ListDiscussions returns the discussions of a project, most recently active first.
	ListDiscussions(ctx context.Context, projectID string) ([]models.Discussion, error)
	// AppendMessages adds messages in order and sets lastActive to the last timestamp.
	AppendMessages(ctx context.Context, discussionID string, msgs ...models.Message) error
	DeleteDiscussion(ctx context.Context, id string) error

	// ReconcileOrphans deletes discussions whose project no longer exists and
	// returns how many were removed.
	ReconcileOrphans(ctx context.Context) (int, error)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func userNotFound(key string) error {
	return fmt.Errorf("user %s: %w: %w", key, ErrNotFound, models.ErrUserNotFound)
}

func errDuplicate(what string) error {
	return fmt.Errorf("%s: %w", what, ErrDuplicate)
}

// IsDuplicate reports whether err signals a unique constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey)
}
