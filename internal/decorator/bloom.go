package decorator

import (
	"context"
	"hash/fnv"
	"math"
)

// BloomParams computes the bit-array size and hash-function count for a
// Bloom filter sized for n expected entries at false-positive rate p
// (spec §4.7): m = ceil(-n*ln(p)/ln(2)^2), k = round((m/n)*ln2).
func BloomParams(n int64, p float64) (m int64, k int) {
	if n <= 0 {
		n = 1
	}
	ln2 := math.Ln2
	m = int64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m < 1 {
		m = 1
	}
	k = int(math.Round((float64(m) / float64(n)) * ln2))
	if k < 1 {
		k = 1
	}
	return m, k
}

// bloomPositions derives k bit positions in [0, m) for key using Kirsch–
// Mitzenmacher double hashing: position_i = (h1 + i*h2) mod m, avoiding k
// independent hash functions for a single filter.
func bloomPositions(key string, m int64, k int) []int {
	h1 := fnvHash(key, 0)
	h2 := fnvHash(key, 1)
	positions := make([]int, k)
	for i := 0; i < k; i++ {
		p := (h1 + uint64(i)*h2) % uint64(m)
		positions[i] = int(p)
	}
	return positions
}

func fnvHash(key string, salt byte) uint64 {
	h := fnv.New64a()
	h.Write([]byte{salt})
	h.Write([]byte(key))
	return h.Sum64()
}

func allOnes(bits []uint64) bool {
	if len(bits) == 0 {
		return false
	}
	for _, b := range bits {
		if b == 0 {
			return false
		}
	}
	return true
}

// Bloom is a membership filter sitting in front of an expensive function:
// Set marks a key present by incrementing its k hash positions, Query
// consults those same positions and reports positive only when every one
// of them is set (spec §4.7, "bloom"). A query reading an untouched
// bits key gets a nil slice back from the backend (spec §9 sentinel) and
// is treated as negative, never conflated with a genuine all-zero field.
// When CheckFalsePositive is set, a positive filter read is re-verified by
// calling Verify before being trusted, trading one extra call for
// eliminating the filter's false-positive rate on confirmed hits.
type Bloom struct {
	store   Store
	keyFn   KeyFunc
	m       int64
	k       int
	bitsKey string

	CheckFalsePositive bool
	Verify             Func
}

// NewBloom builds a Bloom filter sized via BloomParams(n, p). verify, when
// non-nil and CheckFalsePositive is later set to true, is the wrapped
// function Query calls to confirm a positive filter read.
func NewBloom(store Store, keyFn KeyFunc, bitsKey string, n int64, p float64, verify Func) *Bloom {
	m, k := BloomParams(n, p)
	return &Bloom{store: store, keyFn: keyFn, m: m, k: k, bitsKey: bitsKey, Verify: verify}
}

// Set marks the key derived from args present in the filter (spec §4.7,
// "on set(args…) compute k indices and incr_bits them").
func (b *Bloom) Set(ctx context.Context, args ...any) error {
	key := b.keyFn(args...)
	positions := bloomPositions(key, b.m, b.k)
	_, err := b.store.IncrBits(ctx, b.bitsKey, positions, 1, 1)
	return err
}

// Query reports whether the key derived from args might be a member.
// All-ones is a positive (optionally re-verified against Verify); any
// zero bit, or a filter that was never written, is a negative.
func (b *Bloom) Query(ctx context.Context, args ...any) (bool, error) {
	key := b.keyFn(args...)
	positions := bloomPositions(key, b.m, b.k)

	bits, err := b.store.GetBits(ctx, b.bitsKey, 1, positions...)
	if err != nil {
		return false, err
	}
	if bits == nil || !allOnes(bits) {
		return false, nil
	}
	if b.CheckFalsePositive && b.Verify != nil {
		if _, verr := b.Verify(ctx, args...); verr != nil {
			return false, nil
		}
	}
	return true, nil
}
