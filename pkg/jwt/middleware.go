package jwt

import (
	"strconv"
	"strings"

	"school-messaging/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserIDKey is the gin context key for the authenticated user id.
	ContextUserIDKey = "user_id"
	// ContextRoleKey is the gin context key for the user's primary role.
	ContextRoleKey = "role"
	// ContextClaimsKey is the gin context key for the parsed claims.
	ContextClaimsKey = "jwt_claims"
)

// AuthMiddleware extracts and validates the bearer token, storing user id
// and role in the gin context.
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing Authorization header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "Authorization header must be Bearer <token>")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "token invalid or expired")
			c.Abort()
			return
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil || userID == 0 {
			response.Unauthorized(c, "token subject invalid")
			c.Abort()
			return
		}

		role := ""
		if claims.Data != nil {
			if r, ok := claims.Data["role"].(string); ok {
				role = r
			}
		}

		c.Set(ContextUserIDKey, uint(userID))
		c.Set(ContextRoleKey, role)
		c.Set(ContextClaimsKey, claims)

		c.Next()
	}
}

// GetUserID returns the authenticated user id from the gin context.
func GetUserID(c *gin.Context) uint {
	if userID, exists := c.Get(ContextUserIDKey); exists {
		if id, ok := userID.(uint); ok {
			return id
		}
	}
	return 0
}

// GetRole returns the authenticated user's primary role from the context.
func GetRole(c *gin.Context) string {
	if role, exists := c.Get(ContextRoleKey); exists {
		if r, ok := role.(string); ok {
			return r
		}
	}
	return ""
}

// GetClaims returns the parsed JWT claims from the context.
func GetClaims(c *gin.Context) *CustomClaims {
	if claims, exists := c.Get(ContextClaimsKey); exists {
		if cc, ok := claims.(*CustomClaims); ok {
			return cc
		}
	}
	return nil
}
