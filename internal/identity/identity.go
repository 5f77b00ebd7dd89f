// Package identity resolves the acting user from a bearer token and carries it
// through request contexts.
package identity

import (
	"context"
	"errors"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
)

var (
	// ErrMissing indicates no identity is present on the request or context.
	ErrMissing = errors.New("identity required")
	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Identity is the acting user.
type Identity struct {
	ActorID    string `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	ActorName  string `json:"actor_name,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`
}

// Role returns ActorRole as a permissions.Role.
func (i Identity) Role() permissions.Role {
	return permissions.Role(i.ActorRole)
}

// Valid reports whether the identity names an actor and a role.
func (i Identity) Valid() bool {
	return i.ActorID != "" && i.ActorRole != ""
}

// DisplayName returns ActorName, falling back to ActorID.
func (i Identity) DisplayName() string {
	if i.ActorName != "" {
		return i.ActorName
	}
	return i.ActorID
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored on ctx.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.Valid()
}
