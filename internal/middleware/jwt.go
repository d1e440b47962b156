package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/4sighteducation/vespa-activities-api/internal/utils"
)

// JWTProtected validates bearer tokens minted by the platform SSO bridge
// and exposes the staff identity to handlers: the e-mail and the CRM
// profile keys that drive role resolution.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		email := extractEmailFromClaims(claims)
		if email == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token missing staff email")
		}

		c.Locals("staff_email", email)
		c.Locals("staff_name", extractStringClaim(claims, "name"))
		c.Locals("profile_keys", extractProfileKeys(claims))

		return c.Next()
	}
}

func extractEmailFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"email", "sub"} {
		if value := extractStringClaim(claims, key); strings.Contains(value, "@") {
			return value
		}
	}

	return ""
}

func extractStringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}

	return ""
}

func extractProfileKeys(claims jwt.MapClaims) []string {
	value, ok := claims["profile_keys"]
	if !ok {
		return nil
	}

	switch v := value.(type) {
	case []interface{}:
		keys := make([]string, 0, len(v))
		for _, item := range v {
			if key, ok := item.(string); ok && key != "" {
				keys = append(keys, key)
			}
		}
		return keys
	case []string:
		return v
	case string:
		var keys []string
		for _, part := range strings.Split(v, ",") {
			if key := strings.TrimSpace(part); key != "" {
				keys = append(keys, key)
			}
		}
		return keys
	default:
		return nil
	}
}
