package auth

import (
	"errors"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator allows running jobs and lookups on behalf of users.
// Read-only endpoints need any valid token.
const RoleOperator = "operator"

// ErrNoVerifier is returned when no verifier is configured
var ErrNoVerifier = errors.New("authentication not configured")

// TokenVerifier defines the interface for JWT token verification
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
}

// Claims identifies an operator of the ops API
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry role
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Chain tries each verifier in order and returns the first success
type Chain []TokenVerifier

func (ch Chain) Validate(tokenString string) (*Claims, error) {
	err := ErrNoVerifier
	for _, v := range ch {
		if v == nil {
			continue
		}
		claims, verr := v.Validate(tokenString)
		if verr == nil {
			return claims, nil
		}
		err = verr
	}
	return nil, err
}
