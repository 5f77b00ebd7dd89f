package identity

import (
	"context"
	"fmt"
)

// Verifier validates a raw bearer token and maps its claims to an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims names the token claims that carry role, display name and email.
// The actor id is always the subject.
type Claims struct {
	Role  string
	Name  string
	Email string
}

func (c Claims) withDefaults() Claims {
	if c.Role == "" {
		c.Role = "role"
	}
	if c.Name == "" {
		c.Name = "name"
	}
	if c.Email == "" {
		c.Email = "email"
	}
	return c
}

func (c Claims) identity(subject string, claims map[string]any) (Identity, error) {
	id := Identity{
		ActorID:    subject,
		ActorRole:  stringClaim(claims, c.Role),
		ActorName:  stringClaim(claims, c.Name),
		ActorEmail: stringClaim(claims, c.Email),
	}
	if id.ActorID == "" {
		return Identity{}, fmt.Errorf("%w: subject claim required", ErrInvalidToken)
	}
	if id.ActorRole == "" {
		return Identity{}, fmt.Errorf("%w: %s claim required", ErrInvalidToken, c.Role)
	}
	return id, nil
}

// stringClaim reads a string claim. Array claims yield their first string element.
func stringClaim(claims map[string]any, name string) string {
	switch v := claims[name].(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
