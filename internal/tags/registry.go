// Package tags implements the tag-based invalidation registry (spec §4.6):
// the registry stores, per tag template, a list of compiled key-template
// regexes; a key bound under a tag template is validated against those
// patterns and the concrete ("bound") tag is the tag template rendered
// with the same bindings the key's matching pattern extracted. DeleteTags
// evicts every key ever bound to a concrete tag in one call.
package tags

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxkv/fluxkv/internal/backend"
	"github.com/fluxkv/fluxkv/internal/cachekey"
	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// popBatchSize bounds how many members DeleteTags pops from a tag's set
// per round-trip, so a tag with millions of bound keys doesn't force one
// giant command.
const popBatchSize = 200

// Registry tracks, per tag template, the compiled key-template patterns
// that template is allowed to tag, and which concrete (bound) tags are
// currently holding which keys. It installs itself as the wrapped
// backend's on-remove callback so a key evicted or deleted any other way
// still gets pruned from its tags' sets (spec §4.6, "reverse index").
type Registry struct {
	backend backend.Backend

	mu       sync.RWMutex
	patterns map[string][]*cachekey.Template // tag template -> key templates it may bind
	wildcard map[string]bool                 // tag templates registered with no key-template restriction
	keysOf   map[string]map[string]struct{}  // bound tag -> bound keys
}

// New builds a Registry over b, installing its own removal hook. Only one
// Registry should own a given backend's removal callback at a time.
func New(b backend.Backend) *Registry {
	r := &Registry{
		backend:  b,
		patterns: make(map[string][]*cachekey.Template),
		wildcard: make(map[string]bool),
		keysOf:   make(map[string]map[string]struct{}),
	}
	b.SetOnRemoveCallback(r.handleRemoved)
	return r
}

func tagSetKey(tag string) string { return "_tag:" + tag }

// Register declares tagTemplate usable in future Bind calls, restricted to
// keys matching one of keyTemplates (spec §4.6: "the registry stores, per
// tag template, a list of compiled key-template regexes"). Calling
// Register with no keyTemplates registers tagTemplate as a plain,
// unrestricted tag name: any key may be bound to it verbatim, with no
// template rendering performed — the simple case the spec's own examples
// use for a literal tag like "users". Registration is idempotent and safe
// for concurrent use (spec §5, "Global registries").
func (r *Registry) Register(tagTemplate string, keyTemplates ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(keyTemplates) == 0 {
		r.wildcard[tagTemplate] = true
		return
	}
	for _, kt := range keyTemplates {
		r.patterns[tagTemplate] = append(r.patterns[tagTemplate], cachekey.Compile(kt))
	}
}

func (r *Registry) isRegistered(tagTemplate string) bool {
	return r.wildcard[tagTemplate] || len(r.patterns[tagTemplate]) > 0
}

// resolveBoundTag matches key against tagTemplate's registered key-template
// patterns and renders tagTemplate with the bindings the matching pattern
// extracted — the "bound tag" of spec §4.6. A wildcard tag template binds
// key verbatim, unrendered.
func (r *Registry) resolveBoundTag(tagTemplate, key string) (string, bool) {
	if r.wildcard[tagTemplate] {
		return tagTemplate, true
	}
	for _, kt := range r.patterns[tagTemplate] {
		bindings, ok := kt.Match(key)
		if !ok {
			continue
		}
		rendered, err := cachekey.Compile(tagTemplate).Format(bindings)
		if err != nil {
			continue
		}
		return rendered, true
	}
	return "", false
}

// Bind associates key with the given tag templates, validating that key
// matches at least one registered key-template pattern for every named
// tag template (else cachepkg.ErrTagNotRegistered), and binds key under
// each tag template's rendered, concrete tag so a future DeleteTags call
// naming that bound tag evicts key too.
func (r *Registry) Bind(ctx context.Context, key string, tagTemplates []string) error {
	if len(tagTemplates) == 0 {
		return nil
	}

	r.mu.Lock()
	boundTags := make([]string, 0, len(tagTemplates))
	for _, tt := range tagTemplates {
		if !r.isRegistered(tt) {
			r.mu.Unlock()
			return fmt.Errorf("%w: %q", cachepkg.ErrTagNotRegistered, tt)
		}
		boundTag, ok := r.resolveBoundTag(tt, key)
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: key %q matches no pattern registered for %q", cachepkg.ErrTagNotRegistered, key, tt)
		}
		if r.keysOf[boundTag] == nil {
			r.keysOf[boundTag] = make(map[string]struct{})
		}
		r.keysOf[boundTag][key] = struct{}{}
		boundTags = append(boundTags, boundTag)
	}
	r.mu.Unlock()

	for _, bt := range boundTags {
		if err := r.backend.SetAdd(ctx, tagSetKey(bt), 0, key); err != nil {
			return fmt.Errorf("fluxkv: binding tag %q: %w", bt, err)
		}
	}
	return nil
}

// GetKeyTags returns every bound tag whose registered pattern matches key
// (spec §4.6, "get_key_tags(key)"). Wildcard tag templates are not
// reported here since they carry no pattern to match a key's shape
// against; they are only discoverable via an explicit prior Bind.
func (r *Registry) GetKeyTags(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for tt, pats := range r.patterns {
		for _, kt := range pats {
			bindings, ok := kt.Match(key)
			if !ok {
				continue
			}
			rendered, err := cachekey.Compile(tt).Format(bindings)
			if err != nil {
				continue
			}
			out = append(out, rendered)
			break
		}
	}
	return out
}

// handleRemoved prunes a removed key out of every tag set it was bound to.
// Installed as the backend's on-remove callback. The in-process index is
// updated before it returns; the backend's tag sets are pruned on a
// separate goroutine, since a backend (the memory one) invokes this
// callback while holding its own lock.
func (r *Registry) handleRemoved(key string) {
	r.mu.Lock()
	var affected []string
	for t, keys := range r.keysOf {
		if _, ok := keys[key]; ok {
			delete(keys, key)
			affected = append(affected, t)
		}
	}
	r.mu.Unlock()
	if len(affected) == 0 {
		return
	}

	go func() {
		for _, t := range affected {
			_ = r.backend.SetRemove(context.Background(), tagSetKey(t), key)
		}
	}()
}

// DeleteTags evicts every key bound to any of the given tags, draining
// each tag's set in batches of popBatchSize (spec §4.6, "delete_tags").
func (r *Registry) DeleteTags(ctx context.Context, tagList ...string) error {
	for _, t := range tagList {
		setKey := tagSetKey(t)
		for {
			members, err := r.backend.SetPop(ctx, setKey, popBatchSize)
			if err != nil {
				return fmt.Errorf("fluxkv: draining tag %q: %w", t, err)
			}
			if len(members) == 0 {
				break
			}
			if _, err := r.backend.DeleteMany(ctx, members); err != nil {
				return fmt.Errorf("fluxkv: deleting keys for tag %q: %w", t, err)
			}
		}
		r.mu.Lock()
		delete(r.keysOf, t)
		r.mu.Unlock()
	}
	return nil
}

// BoundKeys reports the keys currently bound to tag, for tests and
// diagnostics.
func (r *Registry) BoundKeys(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.keysOf[tag]
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out
}
