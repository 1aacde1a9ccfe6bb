package facade

import (
	"context"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// disableCtxKey carries the set of commands currently disabled for calls
// made through this context (spec §4.8, "Disable control").
type disableCtxKey struct{}

// WithDisabled returns a context in which the given commands are treated
// as no-ops by the facade dispatcher. Disabling with no commands disables
// everything. Nesting merges with any already-disabled set on ctx.
func WithDisabled(ctx context.Context, cmds ...cachepkg.Command) context.Context {
	existing, _ := ctx.Value(disableCtxKey{}).(map[cachepkg.Command]bool)
	merged := make(map[cachepkg.Command]bool, len(existing)+len(cmds))
	for c := range existing {
		merged[c] = true
	}
	if len(cmds) == 0 {
		merged[allCommands] = true
	} else {
		for _, c := range cmds {
			merged[c] = true
		}
	}
	return context.WithValue(ctx, disableCtxKey{}, merged)
}

// allCommands is the sentinel key meaning "every command is disabled",
// set when WithDisabled is called with no explicit command list.
const allCommands = cachepkg.Command("*")

// IsDisabled reports whether cmd is disabled on ctx.
func IsDisabled(ctx context.Context, cmd cachepkg.Command) bool {
	set, _ := ctx.Value(disableCtxKey{}).(map[cachepkg.Command]bool)
	if set == nil {
		return false
	}
	return set[allCommands] || set[cmd]
}
