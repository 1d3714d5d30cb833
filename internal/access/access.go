// Package access gates orchestrator entry points on capabilities and record ownership.
package access

import (
	"context"

	"sitepilot/internal/apperr"
	"sitepilot/internal/permissions"
)

const RoleAdmin = "admin"

// Principal is the authenticated actor for one request.
type Principal struct {
	ID          string
	Role        string
	ClientType  string
	Permissions permissions.Set
}

// NewPrincipal builds a principal and resolves its permission set.
func NewPrincipal(id, role, clientType string) Principal {
	return Principal{
		ID:          id,
		Role:        role,
		ClientType:  clientType,
		Permissions: permissions.Resolve(role, clientType),
	}
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Require fails closed unless every capability is present.
func Require(p Principal, caps ...permissions.Capability) error {
	if p.ID == "" || !p.Permissions.HasAll(caps...) {
		return apperr.Forbidden()
	}
	return nil
}

// Authorize admits the record owner or an admin.
func Authorize(p Principal, ownerID string) error {
	if p.ID == "" {
		return apperr.Forbidden()
	}
	if p.IsAdmin() || (ownerID != "" && p.ID == ownerID) {
		return nil
	}
	return apperr.Forbidden()
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
