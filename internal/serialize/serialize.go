// Package serialize turns arbitrary Go values into the byte strings that
// cross the wire to a backend, and back again. It implements the integer
// fast path, the custom-codec registry and the signing envelope described
// in spec §4.2 and §6 ("Value wire format").
package serialize

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

// kind tags the first byte of every encoded value so Decode knows which
// path produced it, without needing a shared schema between writer and
// reader (spec §6: "Value wire format").
type kind byte

const (
	kindInt    kind = 'i'
	kindBytes  kind = 'b'
	kindString kind = 's'
	kindGob   kind = 'g'
	kindCodec kind = 'c'
)

// Serializer encodes/decodes values for one facade backend. Integers take a
// fast path to a decimal string behind the 'i' kind byte ("i42" for 42), so
// the stored bytes are not a bare number that a remote store's INCR can
// operate on; strings and byte slices keep their own kinds so each decodes
// back to its own type; everything else goes through a
// registered Codec or falls back to gob, matching the original's pickler
// fallback for un-registered types.
type Serializer struct {
	mu      sync.RWMutex
	codecs  map[reflect.Type]Codec
	names   map[reflect.Type]string
	byName  map[string]reflect.Type
	signer  Signer
}

// New builds a Serializer. A nil signer disables the signing envelope.
func New(signer Signer) *Serializer {
	if signer == nil {
		signer = NullSigner{}
	}
	return &Serializer{
		codecs: make(map[reflect.Type]Codec),
		names:  make(map[reflect.Type]string),
		byName: make(map[string]reflect.Type),
		signer: signer,
	}
}

// RegisterCodec associates a Codec with a concrete type so Encode/Decode use
// it instead of the gob fallback. name must be stable across process
// restarts since it is written into the wire format.
func (s *Serializer) RegisterCodec(name string, sample any, codec Codec) {
	t := reflect.TypeOf(sample)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codecs[t] = codec
	s.names[t] = name
	s.byName[name] = t
}

// Encode renders v to the signed wire format.
func (s *Serializer) Encode(v any) ([]byte, error) {
	raw, err := s.encodeValue(v)
	if err != nil {
		return nil, err
	}
	return s.signer.Sign(raw), nil
}

func (s *Serializer) encodeValue(v any) ([]byte, error) {
	switch x := v.(type) {
	case int:
		return append([]byte{byte(kindInt)}, []byte(strconv.Itoa(x))...), nil
	case int64:
		return append([]byte{byte(kindInt)}, []byte(strconv.FormatInt(x, 10))...), nil
	case []byte:
		return append([]byte{byte(kindBytes)}, x...), nil
	case string:
		return append([]byte{byte(kindString)}, []byte(x)...), nil
	}

	t := reflect.TypeOf(v)
	s.mu.RLock()
	codec, hasCodec := s.codecs[t]
	name := s.names[t]
	s.mu.RUnlock()
	if hasCodec {
		body, err := codec.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("fluxkv: encoding %s: %w", name, err)
		}
		header := []byte(name + ":")
		out := make([]byte, 0, 1+len(header)+len(body))
		out = append(out, byte(kindCodec))
		out = append(out, header...)
		out = append(out, body...)
		return out, nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("fluxkv: gob-encoding %T: %w", v, err)
	}
	return append([]byte{byte(kindGob)}, buf.Bytes()...), nil
}

// Decode reverses Encode, verifying the signing envelope first.
func (s *Serializer) Decode(data []byte) (any, error) {
	raw, err := s.signer.Verify(data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("fluxkv: empty payload")
	}
	k, body := kind(raw[0]), raw[1:]
	switch k {
	case kindInt:
		n, err := strconv.ParseInt(string(body), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fluxkv: decoding int payload: %w", err)
		}
		return n, nil
	case kindBytes:
		return body, nil
	case kindString:
		return string(body), nil
	case kindCodec:
		idx := bytes.IndexByte(body, ':')
		if idx < 0 {
			return nil, fmt.Errorf("fluxkv: malformed codec payload")
		}
		name, payload := string(body[:idx]), body[idx+1:]
		s.mu.RLock()
		t, ok := s.byName[name]
		var codec Codec
		if ok {
			codec = s.codecs[t]
		}
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("fluxkv: no codec registered for %q", name)
		}
		return codec.Decode(payload)
	case kindGob:
		var v any
		if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&v); err != nil {
			return nil, fmt.Errorf("fluxkv: gob-decoding payload: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("fluxkv: unknown wire kind %q", k)
	}
}
