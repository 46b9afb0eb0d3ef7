package record

import (
	"context"
	"os/user"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Agent identifies the execution surface a record originated from
const (
	AgentUser = ""
	AgentCLI  = "cli"
	AgentCron = "cron"
)

// Actor describes who performed the action being recorded
type Actor struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Agent       string `json:"agent"`
}

// ActorResolver yields the actor for the current request or process
type ActorResolver interface {
	Current(ctx context.Context) Actor
}

type actorKey struct{}

// WithActor attaches an actor to the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext retrieves the actor attached to the context, if any
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// ContextResolver resolves the actor from the request context, falling back
// to an anonymous actor when none is attached
type ContextResolver struct{}

func (ContextResolver) Current(ctx context.Context) Actor {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return Actor{}
}

// ActorMiddleware reads actor identity headers and attaches the actor to the
// request context for downstream recording
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor{
			Login:       c.GetHeader("X-Actor-Login"),
			Email:       c.GetHeader("X-Actor-Email"),
			DisplayName: c.GetHeader("X-Actor-Name"),
			Role:        c.GetHeader("X-Actor-Role"),
			Agent:       c.GetHeader("X-Actor-Agent"),
		}
		if raw := c.GetHeader("X-Actor-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				actor.ID = id
			}
		}

		ctx := WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// buildActorMeta captures the identity snapshot stored alongside a record.
// For CLI-originated records the operating-system user is recorded too, since
// the application identity alone does not say who ran the command.
func buildActorMeta(actor Actor) map[string]interface{} {
	meta := map[string]interface{}{
		"login":        actor.Login,
		"email":        actor.Email,
		"display_name": actor.DisplayName,
		"role":         actor.Role,
	}
	if actor.Agent != AgentUser {
		meta["agent"] = actor.Agent
	}
	if actor.Agent == AgentCLI {
		if u, err := user.Current(); err == nil {
			meta["system_user_id"] = u.Uid
			meta["system_user_name"] = u.Username
		}
	}
	return meta
}
