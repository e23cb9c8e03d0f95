package actorctx

import (
	"context"

	"github.com/geocoder89/ems/internal/access"
)

type callerKey struct{}

func WithCaller(ctx context.Context, caller access.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFrom(ctx context.Context) (access.Caller, bool) {
	v, ok := ctx.Value(callerKey{}).(access.Caller)

	return v, ok && v.ID != 0
}
