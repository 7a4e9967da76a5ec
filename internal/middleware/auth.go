// Package middleware contains HTTP middleware functions for the club API.
// Middleware sits between the HTTP server and route handlers — it runs on every
// request that passes through it, making it the right place for cross-cutting
// concerns like authentication and role checks.
package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/fairwaygreens/club-api/internal/config"
	"github.com/fairwaygreens/club-api/internal/models"
)

// Claims defines the data we expect inside a bearer token from the identity
// provider. Subject carries the provider's user ID; the rest are custom claims
// configured in the provider's token template:
//
//	"role":  the member's permission level ("admin", "staff", "member")
//	"email": used to populate our members table
//	"name":  display name for our members table
//	"class": the club membership class ("full", "senior", "junior", "social")
type Claims struct {
	jwt.RegisteredClaims        // Standard JWT fields: Subject (user ID), ExpiresAt, IssuedAt, etc.
	Role                 string `json:"role"`
	Email                string `json:"email"`
	Name                 string `json:"name"`
	Class                string `json:"class"`
}

// Auth returns a Fiber middleware handler that:
//  1. Verifies the JWT from the "Authorization: Bearer <token>" header
//  2. Finds the matching member in our database (or creates one on first visit)
//  3. Syncs the member's role from the token into the database
//  4. Stores the member's internal UUID and role in the request context
//     (c.Locals) so downstream handlers can read them without re-parsing
func Auth(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		// HMAC verification against the shared secret. Rejecting unexpected
		// signing methods here prevents the classic alg-substitution forgery.
		token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token claims",
			})
		}

		externalID := claims.Subject
		if externalID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token missing subject",
			})
		}

		// Lazy member sync: the first time someone hits any authenticated
		// endpoint we create their record; afterwards we just look them up.
		role := roleFromClaim(claims.Role)

		email := claims.Email
		if email == "" {
			// Deterministic placeholder until the token template supplies the
			// real address — unique per external user.
			email = fmt.Sprintf("%s@members.local", externalID)
		}

		name := claims.Name
		if name == "" {
			name = "Member"
		}

		class := claims.Class
		if class == "" {
			class = "full"
		}

		var member models.Member
		result := db.Where("external_id = ?", externalID).First(&member)

		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "database error",
				})
			}

			member = models.Member{
				ExternalID:  &externalID,
				DisplayName: name,
				Email:       email,
				MemberClass: class,
				Role:        role,
			}
			if err := db.Create(&member).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to create member record",
				})
			}
		} else {
			// Member found — sync their role in case it changed at the
			// identity provider since their last visit.
			if member.Role != role && claims.Role != "" {
				db.Model(&member).Update("role", role)
				member.Role = role
			}
		}

		// c.Locals is a key-value store scoped to this single request.
		// Handlers read "memberID" (our internal UUID) and "memberRole" from here.
		c.Locals("memberID", member.ID.String())
		c.Locals("memberRole", string(member.Role))

		return c.Next()
	}
}

// roleFromClaim converts the raw role string from the token into our typed
// MemberRole enum, defaulting to the least-privileged role.
func roleFromClaim(s string) models.MemberRole {
	switch s {
	case "admin":
		return models.MemberRoleAdmin
	case "staff":
		return models.MemberRoleStaff
	default:
		return models.MemberRoleMember
	}
}
