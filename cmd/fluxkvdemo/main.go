// Command fluxkvdemo wires an in-memory backend behind the facade, layers
// the simple decorator with tag binding over a toy expensive function, and
// exercises it once so the pieces can be read together end to end.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxkv/fluxkv/internal/backend/memory"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
	"github.com/fluxkv/fluxkv/internal/decorator"
	"github.com/fluxkv/fluxkv/internal/facade"
	"github.com/fluxkv/fluxkv/internal/serialize"
	"github.com/fluxkv/fluxkv/internal/tags"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.StandardLogger()

	mem := memory.New(10_000)
	stop := memory.StartJanitor(mem, time.Second)
	defer stop()

	cache := facade.New(log)
	cache.Setup("", mem)

	registry := tags.New(mem)
	// Tag template "user:{user_id}" covers keys rendered from
	// "user:{user_id}:profile"; binding a profile key renders the tag with
	// the same user_id binding the key used (spec §4.6).
	registry.Register("user:{user_id}", "user:{user_id}:profile")

	serializer := serialize.New(nil)

	expensiveLookup := func(ctx context.Context, args ...any) (any, error) {
		userID := args[0].(string)
		log.WithField("user_id", userID).Info("computing profile")
		return fmt.Sprintf("profile-for-%s", userID), nil
	}

	keyFn := func(args ...any) string { return "user:" + args[0].(string) + ":profile" }

	cached := decorator.Simple(cache, serializer, keyFn, cachepkg.Fixed(time.Minute), registry, []string{"user:{user_id}"}, expensiveLookup)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := cached(ctx, "42")
		if err != nil {
			log.WithError(err).Fatal("lookup failed")
		}
		log.WithField("result", v).Info("got profile")
	}

	if err := registry.DeleteTags(ctx, "user:42"); err != nil {
		log.WithError(err).Fatal("invalidating tag failed")
	}

	if _, ok, _ := cache.Get(ctx, "user:42:profile"); ok {
		log.Fatal("expected tag invalidation to evict the profile")
	}
	log.Info("tag invalidation evicted the cached profile as expected")
}
