package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/parcelflow/parcelflow/internal/actorcontext"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// ActorContext injects the caller's identity headers into the request
// context. Unauthenticated callers are recorded as "system".
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorcontext.Actor{
			ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
			Role: strings.TrimSpace(c.GetHeader(HeaderActorRole)),
		}
		if actor.ID != "" || actor.Role != "" {
			ctx := actorcontext.WithActor(c.Request.Context(), actor)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
