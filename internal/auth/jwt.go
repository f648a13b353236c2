// Package auth resolves bearer credentials to authenticated identities.
// The billing API trusts an upstream identity service to mint HS256 JWTs;
// this package only verifies them and extracts the user id and email.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"huddle/internal/types"
)

// Claims is the JWT claim set issued by the identity service. The subject is
// the Huddle user id; email is carried so billing flows can create gateway
// customers without a directory round trip.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTAuthenticator implements core.Authenticator by verifying HS256 tokens
// against the shared signing secret.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates an authenticator for the given signing secret.
func NewJWTAuthenticator(secret types.SecretString) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret.Unmask())}
}

// ResolveToken verifies the token signature and expiry and returns the
// Identity it represents. The signing method is pinned to HMAC to rule out
// algorithm-confusion attacks.
func (a *JWTAuthenticator) ResolveToken(_ context.Context, token string) (*types.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", err)
	}
	if !parsed.Valid {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", nil)
	}

	if claims.Subject == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is missing a subject", nil)
	}

	return &types.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
	}, nil
}
