package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerActor = "X-User-ID"
	actorKey    = "actor_id"
)

// Actor requires the X-User-ID header set by the gateway and stores the
// parsed id on the context.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(headerActor)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "missing "+headerActor+" header")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			abort(c, http.StatusBadRequest, "invalid "+headerActor+" header")
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// ActorID returns the id stored by Actor.
func ActorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
