package cachepkg

import "fmt"

// Error kinds from spec §7. Backends and decorators return these directly or
// wrap them with fmt.Errorf("...: %w", ...) so callers can unwrap with
// errors.Is/errors.As.
var (
	// ErrNotConfigured is returned when the facade is used before Setup.
	ErrNotConfigured = fmt.Errorf("fluxkv: facade used before setup")

	// ErrBackendNotAvailable is returned when a connection URL names a
	// backend scheme this build does not compile in.
	ErrBackendNotAvailable = fmt.Errorf("fluxkv: backend not available")

	// ErrTagNotRegistered is returned when a write names a tag whose
	// template was never registered for the key being written.
	ErrTagNotRegistered = fmt.Errorf("fluxkv: tag not registered")

	// ErrSignMissing is returned decoding an unsigned value when a secret
	// is configured.
	ErrSignMissing = fmt.Errorf("fluxkv: signature missing")

	// ErrUnsecureData is returned decoding a value whose signature does
	// not match the configured secret.
	ErrUnsecureData = fmt.Errorf("fluxkv: unsecure data, signature mismatch")

	// ErrCircuitBreakerOpen is the policy-level refusal the circuit
	// breaker decorator raises while open.
	ErrCircuitBreakerOpen = fmt.Errorf("fluxkv: circuit breaker open")

	// ErrRateLimited is the default rate-limit action.
	ErrRateLimited = fmt.Errorf("fluxkv: rate limit reached")
)

// BackendError wraps a transport/timeout/protocol failure from a storage
// adapter (spec §7, CacheBackendInteractionError). It is suppressible: the
// Suppress wrapper maps it to a neutral default for every command but Ping.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("fluxkv: backend %q op %q: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// LockedError reports a failed mutual-exclusion acquisition: a lock context
// contending on an already-held key, or a transaction lock already held by
// another transaction; a transaction makes one acquisition attempt per key
// and does not retry (spec §4.4, §7).
type LockedError struct {
	Key    string
	Reason string
}

func (e *LockedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("fluxkv: key %q locked: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("fluxkv: key %q locked", e.Key)
}
