package middleware

import (
	"net/http"
	"strings"

	"github.com/cmdf/pdfnote-be/types"
	"github.com/cmdf/pdfnote-be/utils"
	"github.com/gin-gonic/gin"
)

const (
	userIDContextKey   = "user_id"
	usernameContextKey = "username"
)

// AuthMiddleware requires a valid access token in the Authorization header.
// Websocket upgrades may pass it as the token query parameter instead,
// since browsers cannot set headers on them.
func AuthMiddleware(tm *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" && c.IsWebsocket() && c.Query("token") != "" {
			authHeader = "Bearer " + c.Query("token")
		}
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.DetailResponse{Detail: "Authorization header is required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.DetailResponse{Detail: "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := tm.ParseAccessToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.DetailResponse{Detail: "Given token not valid for any token type"})
			return
		}

		c.Set(userIDContextKey, claims.UserID)
		c.Set(usernameContextKey, claims.Username)
		c.Next()
	}
}

// UserIDFromContext returns the id set by AuthMiddleware.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
