package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const RoleAdmin = "admin"

// AdminClaims is the token payload issued by the admin login service.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAdminToken signs an HS256 admin token.
func GenerateAdminToken(secret, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid token format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// AdminAuthMiddleware accepts only valid admin tokens and stores the admin id
// under "admin_id".
func AdminAuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}

		claims := &AdminClaims{}
		_, err = jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			log.Warn("🚫 [ADMIN_AUTH] invalid token", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "invalid token",
			})
		}
		if claims.Role != RoleAdmin {
			log.Warn("🚫 [ADMIN_AUTH] non-admin token", zap.String("path", c.Path()), zap.String("subject", claims.Subject))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "admin role required",
			})
		}

		c.Locals("admin_id", claims.Subject)
		return c.Next()
	}
}

// AdminID returns the authenticated admin's id, or "".
func AdminID(c *fiber.Ctx) string {
	id, _ := c.Locals("admin_id").(string)
	return id
}
