package app

import (
	"context"
	"strings"

	"github.com/hylla/sectboard/internal/domain"
)

// MutationActor carries normalized caller identity metadata for mutation attribution.
type MutationActor struct {
	ActorID   string
	ActorType domain.ActorType
}

// WithMutationActor attaches normalized mutation-actor identity metadata to context.
func WithMutationActor(ctx context.Context, actor MutationActor) context.Context {
	actor = normalizeMutationActor(actor)
	return context.WithValue(ctx, mutationActorContextKey{}, actor)
}

// MutationActorFromContext returns normalized mutation-actor metadata when present.
func MutationActorFromContext(ctx context.Context) (MutationActor, bool) {
	raw := ctx.Value(mutationActorContextKey{})
	actor, ok := raw.(MutationActor)
	if !ok {
		return MutationActor{}, false
	}
	actor = normalizeMutationActor(actor)
	if actor.ActorID == "" {
		return MutationActor{}, false
	}
	return actor, true
}

// mutationActorContextKey stores context keys for mutation actor metadata.
type mutationActorContextKey struct{}

// actorFor resolves the actor stamped on a mutation; unattributed calls are
// recorded as the local user.
func actorFor(ctx context.Context) MutationActor {
	if actor, ok := MutationActorFromContext(ctx); ok {
		return actor
	}
	return MutationActor{ActorID: "local", ActorType: domain.ActorTypeUser}
}

func normalizeMutationActor(actor MutationActor) MutationActor {
	actor.ActorID = strings.TrimSpace(actor.ActorID)
	actor.ActorType = domain.ActorType(strings.TrimSpace(strings.ToLower(string(actor.ActorType))))
	switch actor.ActorType {
	case domain.ActorTypeUser, domain.ActorTypeAgent, domain.ActorTypeSystem:
	default:
		actor.ActorType = domain.ActorTypeUser
	}
	return actor
}
