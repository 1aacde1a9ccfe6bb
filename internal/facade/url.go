package facade

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fluxkv/fluxkv/internal/cachepkg"
)

// ConnOptions is the parsed form of a connection URL (spec §6, "Connection
// URL scheme"): scheme://host:port/path?opt=val. Boolean options
// (suppress, client_side, disable) are true when present with no value or
// a truthy value; every other query parameter is exposed both as its raw
// string and, when it parses as a number, as a float64.
type ConnOptions struct {
	Scheme string
	Host   string
	Port   int
	Path   string

	Suppress   bool
	ClientSide bool
	Disable    bool

	Extra map[string]string
	Numeric map[string]float64
}

var knownSchemes = map[string]bool{
	"mem":   true,
	"disk":  true,
	"redis": true,
	"rediss": true,
}

// ParseURL parses a connection URL into ConnOptions, lowercasing option
// names. An unrecognized scheme is reported as an error wrapping
// cachepkg.ErrBackendNotAvailable.
func ParseURL(raw string) (*ConnOptions, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("fluxkv: parsing connection url: %w", err)
	}
	if !knownSchemes[u.Scheme] {
		return nil, fmt.Errorf("fluxkv: %w: scheme %q", cachepkg.ErrBackendNotAvailable, u.Scheme)
	}

	opts := &ConnOptions{
		Scheme:  u.Scheme,
		Host:    u.Hostname(),
		Path:    u.Path,
		Extra:   make(map[string]string),
		Numeric: make(map[string]float64),
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("fluxkv: invalid port %q: %w", p, err)
		}
		opts.Port = n
	}

	q := u.Query()
	for key, vals := range q {
		key = strings.ToLower(key)
		v := ""
		if len(vals) > 0 {
			v = vals[0]
		}
		switch key {
		case "suppress":
			opts.Suppress = isTruthy(v)
		case "client_side":
			opts.ClientSide = isTruthy(v)
		case "disable":
			opts.Disable = isTruthy(v)
		default:
			opts.Extra[key] = v
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				opts.Numeric[key] = n
			}
		}
	}
	return opts, nil
}

func isTruthy(v string) bool {
	switch v {
	case "", "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
