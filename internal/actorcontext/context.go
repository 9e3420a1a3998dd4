package actorcontext

import (
	"context"
	"strings"
)

// Actor identifies who performs a mutating call. Authentication itself lives at
// the transport boundary; the core only records the identity it is handed.
type Actor struct {
	ID   string
	Role string
}

type contextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	actor.ID = strings.TrimSpace(actor.ID)
	actor.Role = strings.TrimSpace(actor.Role)
	return context.WithValue(ctx, contextKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}

// ActorID returns the actor id or "system" when the context carries none.
func ActorID(ctx context.Context) string {
	if actor, ok := FromContext(ctx); ok && actor.ID != "" {
		return actor.ID
	}
	return "system"
}

func ActorRole(ctx context.Context) string {
	if actor, ok := FromContext(ctx); ok && actor.Role != "" {
		return actor.Role
	}
	return "system"
}
