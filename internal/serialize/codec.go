package serialize

// Codec lets callers register a custom wire representation for a Go type,
// in place of the default gob-based fallback. Encode/Decode operate on the
// already-typed value; the Serializer handles the integer fast path and
// signing envelope around whatever a Codec produces (spec §4.2, "Custom
// type codec registry").
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// CodecFunc adapts a pair of plain functions to the Codec interface.
type CodecFunc struct {
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte) (any, error)
}

func (c CodecFunc) Encode(v any) ([]byte, error)   { return c.EncodeFn(v) }
func (c CodecFunc) Decode(data []byte) (any, error) { return c.DecodeFn(data) }
