package facade

import (
	"context"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// Invoker performs the actual backend call for one command once all
// middlewares have run.
type Invoker func(ctx context.Context) (any, error)

// Middleware observes or intercepts one dispatched command. Implementations
// call next to continue the chain, or return their own result/error to
// short-circuit it (spec §4.5, "Middleware chain").
type Middleware func(cmd cachepkg.Command, key string, next Invoker) Invoker

// chain composes middlewares (outermost first) around a terminal invoker.
func chain(mws []Middleware, cmd cachepkg.Command, key string, terminal Invoker) Invoker {
	inv := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		inv = mws[i](cmd, key, inv)
	}
	return inv
}

// disableMiddleware turns a disabled command into a no-op returning a
// command-appropriate zero value, instead of reaching the backend at all
// (spec §4.8).
func disableMiddleware(cmd cachepkg.Command, key string, next Invoker) Invoker {
	return func(ctx context.Context) (any, error) {
		if IsDisabled(ctx, cmd) {
			return nil, nil
		}
		return next(ctx)
	}
}

type invalidateFurtherCtxKey struct{}

// WithInvalidateFurther marks ctx so that any retrieve-shaped command
// issued with it deletes the key instead of reading it — used to drain a
// cache of keys matching a pattern without reading their values first
// (spec §4.5, RetrieveCommands).
func WithInvalidateFurther(ctx context.Context) context.Context {
	return context.WithValue(ctx, invalidateFurtherCtxKey{}, true)
}

func isInvalidateFurther(ctx context.Context) bool {
	v, _ := ctx.Value(invalidateFurtherCtxKey{}).(bool)
	return v
}

// invalidateFurtherMiddleware implements the redirection described above.
// deleteFn is supplied by the Cache since this middleware has no backend
// reference of its own.
func invalidateFurtherMiddleware(deleteFn func(ctx context.Context, key string) (any, error)) Middleware {
	return func(cmd cachepkg.Command, key string, next Invoker) Invoker {
		return func(ctx context.Context) (any, error) {
			if isInvalidateFurther(ctx) && cachepkg.RetrieveCommands[cmd] {
				return deleteFn(ctx, key)
			}
			return next(ctx)
		}
	}
}
