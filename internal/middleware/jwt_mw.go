package middleware

import (
	"net/http"
	"strings"

	"recharge_desk/internal/model"
	"recharge_desk/internal/utils"

	"github.com/gin-gonic/gin"
)

const SessionKey = "session"

// JWTAuthMiddleware creates a middleware for JWT authentication
func JWTAuthMiddleware(jwtUtil *utils.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		session, err := jwtUtil.ParseSession(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(SessionKey, session)
		c.Next()
	}
}

// GetSession returns the session stored by JWTAuthMiddleware
func GetSession(c *gin.Context) (model.Session, bool) {
	val, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	session, ok := val.(model.Session)
	return session, ok
}

// RequireUser lets only customer sessions through
func RequireUser() gin.HandlerFunc {
	return requireSession(func(s model.Session) bool {
		_, ok := s.(model.UserSession)
		return ok
	})
}

// RequireAdmin lets only admin sessions through
func RequireAdmin() gin.HandlerFunc {
	return requireSession(func(s model.Session) bool {
		_, ok := s.(model.AdminSession)
		return ok
	})
}

func requireSession(allowed func(model.Session) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session not found, ensure JWT middleware runs first"})
			return
		}
		if !allowed(session) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
			return
		}
		c.Next()
	}
}
