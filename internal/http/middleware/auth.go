// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication for the operator API and
// shared-secret authentication for the webhook intake. Token issuance and
// refresh live in the identity provider; this middleware only validates.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims are the JWT claims expected on operator access tokens.
type AuthClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RequireJWT returns a middleware that validates a "Bearer" token signed with
// HS256 and the given secret. On success the token's user id is stored in the
// Gin context under "userID" (the key the rate limiter and loggers read);
// otherwise the request is aborted with 401.
//
// An empty secret disables authentication entirely. That is a development
// convenience; production configs must set JWT_SECRET.
func RequireJWT(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		const prefix = "Bearer "
		if !strings.HasPrefix(raw, prefix) {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := &AuthClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(raw, prefix), claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenUnverifiable
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "invalid or expired token")
			return
		}

		if claims.UserID != "" {
			c.Set("userID", claims.UserID)
		}
		c.Next()
	}
}

// RequireWebhookSecret returns a middleware that matches the
// X-Webhook-Secret header against the configured shared secret. The webhook
// caller is a machine, not an operator, so JWT would be the wrong shape here.
//
// An empty configured secret disables the check.
func RequireWebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Webhook-Secret") != secret {
			unauthorized(c, "invalid webhook secret")
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "unauthorized",
		"message": msg,
	})
}
