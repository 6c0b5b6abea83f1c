package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/pkg/response"
)

type capabilityGate interface {
	Authorize(ctx context.Context, credential string, capability models.Capability) (models.Grant, *models.JWTClaims, error)
}

// RequireCapability admits requests whose bearer token belongs to an active
// account holding the capability. Bad or missing credentials get 401, a
// missing capability gets 403.
func RequireCapability(gate capabilityGate, capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		_, claims, err := gate.Authorize(c.Request.Context(), token, capability)
		if claims != nil {
			setClaims(c, claims)
		}
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentClaims returns the claims stored by JWT or RequireCapability.
func CurrentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}
