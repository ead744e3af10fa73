package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// AuthEmailKey is the gin context key holding the authenticated email.
const AuthEmailKey = "auth_email"

// authClaims is the subset of token claims the checkout pipeline uses.
type authClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthContext extracts the caller's email from a Bearer token when one is
// present. Checkout works for guests too, so a missing or invalid token
// never rejects the request; it only leaves the context email empty and
// agent attribution falls back to the other signals.
func AuthContext(secret string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.Next()
			return
		}

		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.WithError(err).Debug("Ignoring invalid bearer token")
			c.Next()
			return
		}

		if claims.Email != "" {
			c.Set(AuthEmailKey, strings.ToLower(claims.Email))
		}
		c.Next()
	}
}

// GetAuthEmail returns the authenticated email set by AuthContext, or "".
func GetAuthEmail(c *gin.Context) string {
	if v, ok := c.Get(AuthEmailKey); ok {
		if email, ok := v.(string); ok {
			return email
		}
	}
	return ""
}
