package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ActorHeader carries the authenticated clinician or system identity.
// Authentication itself happens upstream; the engine only requires that an
// identity is present so every audit record names its actor.
const ActorHeader = "X-Actor-ID"

// ActorRequired rejects requests that carry no actor identity.
func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(ActorHeader)
		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":          "Missing " + ActorHeader + " header",
				"correlation_id": c.GetString("correlation_id"),
			})
			return
		}

		c.Set("actor_id", actorID)
		c.Next()
	}
}
