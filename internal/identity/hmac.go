package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACVerifier validates HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	claims Claims
	parser *jwt.Parser
}

// NewHMAC creates an HMACVerifier. Issuer and audience are enforced when non-empty.
func NewHMAC(secret, issuer, audience string, claims Claims) *HMACVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &HMACVerifier{
		secret: []byte(secret),
		claims: claims.withDefaults(),
		parser: jwt.NewParser(opts...),
	}
}

func (v *HMACVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return v.claims.identity(sub, claims)
}
