package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	authorizer "github.com/localnerve/authorizer-go"
	"github.com/localnerve/jam-build-minisdb/internal/config"
	"github.com/localnerve/jam-build-minisdb/internal/services"
	"github.com/localnerve/jam-build-minisdb/internal/types"
)

// IdentityKey is the fiber Locals key the authenticated identity is stored under.
const IdentityKey = "identity"

// AuthUser validates that the request has user role authorization and
// stores the caller's identity claims in context.
func AuthUser(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, cfg, []string{"user"}, "minis.authorization.user")
	}
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, cfg *config.Config, roles []string, errorType string) error {
	// Lazy init against the request's own protocol and host
	if !services.IsAuthorizerInitialized() {
		if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname()); err != nil {
			return &types.CustomError{
				Code:    fiber.StatusServiceUnavailable,
				Message: fmt.Sprintf("Authorizer unavailable: %v", err),
				Type:    errorType,
			}
		}
	}

	// Get session cookie
	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    errorType,
		}
	}

	// Validate session
	user, err := services.ValidateSession(session, roles)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	c.Locals(IdentityKey, identityFromUser(user))

	return c.Next()
}

// identityFromUser flattens the authorizer user claims into the service's
// identity shape.
func identityFromUser(user *authorizer.User) *types.Identity {
	return &types.Identity{
		Subject:           user.ID,
		Email:             user.Email,
		PreferredUsername: user.PreferredUsername,
		Nickname:          deref(user.Nickname),
		GivenName:         deref(user.GivenName),
		FamilyName:        deref(user.FamilyName),
		Picture:           deref(user.Picture),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
