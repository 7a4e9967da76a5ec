// roles.go — role-based access control.
// The app has three roles: admin, staff, member. These middleware functions
// are applied to routes that require specific permissions.
package middleware

import "github.com/gofiber/fiber/v2"

// RequireRole returns a middleware handler that allows only members whose role
// matches one of the provided roles, responding 403 Forbidden otherwise.
//
// It accepts a variadic list so a route can allow several roles in one call:
//
//	admin.Post("/lottery/run", middleware.RequireRole("admin", "staff"), handlers.RunLottery(...))
//
// RequireRole must come AFTER the Auth middleware, because Auth is what
// populates the "memberRole" value in the request context.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		memberRole, ok := c.Locals("memberRole").(string)
		if !ok || memberRole == "" {
			// No role in context means Auth wasn't applied or failed silently.
			// 403 rather than 401: the caller may be authenticated but roleless.
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}

		for _, role := range roles {
			if memberRole == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient permissions",
		})
	}
}
