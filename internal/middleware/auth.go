package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/util"
	"go.uber.org/zap"
)

// RequireIdentity rejects requests without a valid bearer token and stores
// the caller's identity on the context
func RequireIdentity(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			util.RespondUnauthorized(c, "no token provided")
			return
		}

		identity, err := tokens.Validate(tokenString)
		if err != nil {
			logger.Log.Debug("Rejected token",
				logger.WithRequestID(c.GetString("request_id")),
				zap.Error(err),
			)
			util.RespondUnauthorized(c, "invalid token")
			return
		}

		util.SetIdentity(c, identity)
		c.Next()
	}
}
