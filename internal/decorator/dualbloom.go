package decorator

import "context"

// DualBloom disambiguates membership with two filters instead of one: a
// "true" filter marking keys known to satisfy some predicate and a "false"
// filter marking keys known not to. A query hitting only one filter trusts
// it; hitting both (a collision) or neither (never queried) is ambiguous
// and the caller must fall through to the wrapped function to get a
// definitive answer (spec §4.7, "dual_bloom").
type DualBloom struct {
	store Store
	m     int64
	k     int

	trueKey, falseKey string
}

// NewDualBloom builds a DualBloom sized via BloomParams(n, p), using two
// backend keys for the true and false bit arrays.
func NewDualBloom(store Store, n int64, p float64, trueKey, falseKey string) *DualBloom {
	m, k := BloomParams(n, p)
	return &DualBloom{store: store, m: m, k: k, trueKey: trueKey, falseKey: falseKey}
}

// MarkTrue records that key satisfies the predicate.
func (d *DualBloom) MarkTrue(ctx context.Context, key string) error {
	positions := bloomPositions(key, d.m, d.k)
	_, err := d.store.IncrBits(ctx, d.trueKey, positions, 1, 1)
	return err
}

// MarkFalse records that key does not satisfy the predicate.
func (d *DualBloom) MarkFalse(ctx context.Context, key string) error {
	positions := bloomPositions(key, d.m, d.k)
	_, err := d.store.IncrBits(ctx, d.falseKey, positions, 1, 1)
	return err
}

// Query consults both filters. value is only meaningful when ambiguous is
// false: a hit in exactly one filter is trusted outright, while a hit in
// both (a hash collision between the two) or neither (key never marked)
// leaves the answer ambiguous and the caller should ask the wrapped
// function directly.
func (d *DualBloom) Query(ctx context.Context, key string) (value bool, ambiguous bool, err error) {
	positions := bloomPositions(key, d.m, d.k)

	trueBits, err := d.store.GetBits(ctx, d.trueKey, 1, positions...)
	if err != nil {
		return false, true, err
	}
	falseBits, err := d.store.GetBits(ctx, d.falseKey, 1, positions...)
	if err != nil {
		return false, true, err
	}

	trueHit := trueBits != nil && allOnes(trueBits)
	falseHit := falseBits != nil && allOnes(falseBits)

	switch {
	case trueHit && !falseHit:
		return true, false, nil
	case falseHit && !trueHit:
		return false, false, nil
	default:
		return false, true, nil
	}
}

// BoolLookup is the predicate a DualBloom falls back on when a query comes
// back ambiguous.
type BoolLookup func(ctx context.Context, args ...any) (bool, error)

// Wrap builds a Func-shaped decorator around lookup: an unambiguous filter
// read answers the call directly, an ambiguous one calls lookup and marks
// the filter with the result for next time.
func (d *DualBloom) Wrap(keyFn KeyFunc, lookup BoolLookup) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		key := keyFn(args...)
		value, ambiguous, err := d.Query(ctx, key)
		if err == nil && !ambiguous {
			return value, nil
		}

		result, lerr := lookup(ctx, args...)
		if lerr != nil {
			return nil, lerr
		}
		if result {
			_ = d.MarkTrue(ctx, key)
		} else {
			_ = d.MarkFalse(ctx, key)
		}
		return result, nil
	}
}
