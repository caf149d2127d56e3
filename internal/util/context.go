package util

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/profiles/internal/auth"
)

const identityKey = "identity"

// SetIdentity stores the authenticated identity on the request
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", id.UserID)
}

// GetIdentityFromContext extracts the authenticated identity from the Gin context.
// If the request is not authenticated, it responds with 401 and returns false.
func GetIdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		RespondUnauthorized(c)
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	if !ok || !id.Valid() {
		RespondUnauthorized(c)
		return auth.Identity{}, false
	}
	return id, true
}
