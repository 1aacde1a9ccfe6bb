package serialize

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// Signer wraps a value with an authentication tag before it leaves the
// process and verifies that tag on the way back in, matching the wire
// format from spec §6: "digestmod:hex_signature_value" prefixed onto the
// payload. digestmod is one of md5, sha1, sha256 or sum (the original's
// non-cryptographic "sum" digest, used when no secret-strength guarantee is
// needed).
type Signer interface {
	Sign(data []byte) []byte
	Verify(data []byte) ([]byte, error)
}

// NullSigner passes data through unchanged; used when no secret is
// configured (spec: signing is optional).
type NullSigner struct{}

func (NullSigner) Sign(data []byte) []byte            { return data }
func (NullSigner) Verify(data []byte) ([]byte, error) { return data, nil }

// HashSigner implements the HMAC-based envelope. Digest selects one of
// md5/sha1/sha256; "sum" uses a plain additive checksum instead of HMAC,
// mirroring the original's non-cryptographic digestmod.
type HashSigner struct {
	Secret []byte
	Digest string
}

func newHash(digest string) (func() hash.Hash, error) {
	switch digest {
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("fluxkv: unsupported digest %q", digest)
	}
}

func (s HashSigner) mac(data []byte) (string, error) {
	if s.Digest == "sum" {
		var sum byte
		for _, b := range data {
			sum += b
		}
		return hex.EncodeToString([]byte{sum}), nil
	}
	newFn, err := newHash(s.Digest)
	if err != nil {
		return "", err
	}
	h := hmac.New(newFn, s.Secret)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sign prepends "digestmod:signature:" to data.
func (s HashSigner) Sign(data []byte) []byte {
	sig, err := s.mac(data)
	if err != nil {
		return data
	}
	prefix := s.Digest + ":" + sig + ":"
	out := make([]byte, 0, len(prefix)+len(data))
	out = append(out, prefix...)
	out = append(out, data...)
	return out
}

// Verify strips and checks the "digestmod:signature:" envelope, returning
// cachepkg.ErrSignMissing when the envelope is absent and
// cachepkg.ErrUnsecureData when the signature does not match.
func (s HashSigner) Verify(data []byte) ([]byte, error) {
	parts := strings.SplitN(string(data), ":", 3)
	if len(parts) != 3 {
		return nil, cachepkg.ErrSignMissing
	}
	digest, sig, payload := parts[0], parts[1], []byte(parts[2])

	want, err := (HashSigner{Secret: s.Secret, Digest: digest}).mac(payload)
	if err != nil {
		return nil, fmt.Errorf("fluxkv: verifying signature: %w", err)
	}
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return nil, cachepkg.ErrUnsecureData
	}
	return payload, nil
}
