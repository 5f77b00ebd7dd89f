package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier validates ID tokens against an OpenID Connect issuer. Provider
// discovery happens on first use and is retried until it succeeds.
type OIDCVerifier struct {
	issuer   string
	audience string
	claims   Claims

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

// NewOIDC creates an OIDCVerifier for issuer, accepting tokens whose audience
// includes audience.
func NewOIDC(issuer, audience string, claims Claims) *OIDCVerifier {
	return &OIDCVerifier{
		issuer:   issuer,
		audience: audience,
		claims:   claims.withDefaults(),
	}
}

func (v *OIDCVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	verifier, err := v.resolve(ctx)
	if err != nil {
		return Identity{}, err
	}

	idToken, err := verifier.Verify(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}
	return v.claims.identity(idToken.Subject, claims)
}

func (v *OIDCVerifier) resolve(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifier != nil {
		return v.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, v.issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", v.issuer, err)
	}
	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.audience})
	return v.verifier, nil
}
