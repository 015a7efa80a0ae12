package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/auth"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/pkg/response"
)

const claimsKey = "claims"

// AuthMiddleware guards the ops API with bearer tokens
type AuthMiddleware struct {
	verifier auth.TokenVerifier
}

func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate accepts "Authorization: Bearer <jwt>" and stores the verified
// claims for later handlers
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		if m.verifier == nil {
			return response.Unauthorized(c, "Authentication not configured")
		}

		claims, err := m.verifier.Validate(token)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// RequireRole rejects operators whose token lacks role. It must run after
// Authenticate.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil || !claims.HasRole(role) {
			return response.Forbidden(c, "Missing role "+role)
		}
		return c.Next()
	}
}

// Claims returns the verified operator claims, or nil on public routes
func Claims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}
