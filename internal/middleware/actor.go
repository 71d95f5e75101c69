package middleware

import "github.com/gin-gonic/gin"

const (
	// ActorHeader is the HTTP header the client SDK sets on every request
	// to identify the acting user.
	ActorHeader = "X-Actor-ID"

	// ActorKey is the gin context key holding the request's actor.
	ActorKey = "actor_id"
)

// Actor copies the X-Actor-ID header into the request context so write
// handlers can attribute ledger entries without requiring actor_id in every
// request body. An explicit body actor_id still wins over the header.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := c.GetHeader(ActorHeader); actor != "" {
			c.Set(ActorKey, actor)
		}

		c.Next()
	}
}
