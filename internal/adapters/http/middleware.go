package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/parley-chat/parley/internal/domain"
)

const ctxUserID = "user_id"

// Identity asserts the account identity behind a bearer token.
type Identity interface {
	Assert(token string) (string, error)
}

// UserResolver maps an asserted identity to a directory user id.
type UserResolver interface {
	GetUserIDForIdentity(ctx context.Context, identity string) (domain.UserID, error)
}

// AuthMiddleware resolves the caller or aborts with 401. Handlers behind it
// can rely on CallerID being present.
func AuthMiddleware(identity Identity, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := identity.Assert(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID, err := users.GetUserIDForIdentity(c.Request.Context(), id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown identity"})
			return
		}
		c.Set(ctxUserID, string(userID))
		c.Next()
	}
}

// CallerID reads the resolved user id installed by AuthMiddleware.
func CallerID(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(ctxUserID))
}
