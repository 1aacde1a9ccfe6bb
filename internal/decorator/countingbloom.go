package decorator

import "context"

// CountingBloom is a Bloom filter variant that stores a small counter per
// bit position instead of a single bit, so a membership can be removed as
// well as added — the counting-bloom sibling the distilled strategy list
// omits but the original implements alongside bloom/dual_bloom.
type CountingBloom struct {
	store     Store
	m         int64
	k         int
	counterSz int
	bitsKey   string
}

// NewCountingBloom builds a counting Bloom filter sized via
// BloomParams(n, p); counterSize is the bit width of each counter (4 bits
// allows counts 0-15 before saturating, the usual counting-bloom default).
func NewCountingBloom(store Store, n int64, p float64, counterSize int, bitsKey string) *CountingBloom {
	m, k := BloomParams(n, p)
	if counterSize <= 0 {
		counterSize = 4
	}
	return &CountingBloom{store: store, m: m, k: k, counterSz: counterSize, bitsKey: bitsKey}
}

// Add increments every hash position's counter.
func (c *CountingBloom) Add(ctx context.Context, key string) error {
	positions := bloomPositions(key, c.m, c.k)
	_, err := c.store.IncrBits(ctx, c.bitsKey, positions, 1, c.counterSz)
	return err
}

// Remove decrements every hash position's counter, letting a key that was
// added more than once stay reported as present until every Add has a
// matching Remove.
func (c *CountingBloom) Remove(ctx context.Context, key string) error {
	positions := bloomPositions(key, c.m, c.k)
	_, err := c.store.IncrBits(ctx, c.bitsKey, positions, -1, c.counterSz)
	return err
}

// MightContain reports whether every hash position's counter is non-zero.
func (c *CountingBloom) MightContain(ctx context.Context, key string) (bool, error) {
	positions := bloomPositions(key, c.m, c.k)
	bits, err := c.store.GetBits(ctx, c.bitsKey, c.counterSz, positions...)
	if err != nil {
		return false, err
	}
	return allOnes(bits), nil
}
