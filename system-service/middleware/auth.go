package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/utils/auth"
)

// Context keys set by the middlewares in this package.
const (
	ContextClaims       = "claims"
	ContextUserID       = "user_id"
	ContextUsername     = "username"
	ContextOrgID        = "orgid"
	ContextRequestID    = "request_id"
	ContextErrorMessage = "error_message"
)

// AuthMiddleware validates the bearer token and stores its claims in the
// context. Browsers cannot set headers on WebSocket upgrades, so a "token"
// query parameter is accepted as well.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractTokenFromHeader(c.Request)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authorization header is required",
			})
			return
		}

		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextOrgID, claims.OrgID)

		c.Next()
	}
}

// CurrentClaims returns the claims stored by AuthMiddleware.
func CurrentClaims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

// ExtractTokenFromHeader extracts the token from the Authorization header
func ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return ""
	}

	return tokenParts[1]
}
