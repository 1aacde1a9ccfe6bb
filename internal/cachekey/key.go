// Package cachekey renders parameterised key templates from argument
// bindings and compiles templates to matching regular expressions, per
// spec §3 ("Template") and §6 ("Key template syntax").
//
// A template looks like "user:{user_id}:profile" or, with a formatter,
// "user:{token:jwt(sub)}:profile". Formatter names and registration are
// grounded on the original's formatter.py _FuncFormatter.
package cachekey

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Formatter transforms a bound placeholder value into its string
// representation inside a rendered key. args are the formatter's
// parenthesised arguments, e.g. "hash(sha256)" -> alg="sha256".
type Formatter func(value string, args []string) (string, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Formatter{
		"len":   lenFormatter,
		"hash":  hashFormatter,
		"lower": lowerFormatter,
		"upper": upperFormatter,
		"jwt":   jwtFormatter,
	}
)

// RegisterFormatter adds a user-defined named formatter, usable in any
// template as {name:myformatter(arg1,arg2)}. Safe for concurrent use; the
// registry is append-only at runtime (spec §5, "Global registries").
func RegisterFormatter(name string, fn Formatter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

func lookupFormatter(name string) (Formatter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// placeholder describes one `{name}` or `{name:fmt(args)}` token found in a
// template, in source order.
type placeholder struct {
	name      string
	fmtName   string
	fmtArgs   []string
	hasFormat bool
}

// Template is a compiled key template: it can render a concrete key from a
// set of named bindings, and it can match a concrete key back into bindings.
type Template struct {
	raw          string
	placeholders []placeholder
	matchRe      *regexp.Regexp
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Compile parses a template string into a Template. It never fails on
// malformed formatter syntax — an unparsable format spec is treated as a
// literal field with no formatter, matching the original's tolerant
// Formatter.get_field behavior.
func Compile(template string) *Template {
	t := &Template{raw: template}

	var reBuilder strings.Builder
	reBuilder.WriteString("^")
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(template, -1) {
		reBuilder.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		inner := template[loc[0]+1 : loc[1]-1]
		name, fmtName, fmtArgs, hasFormat := splitPlaceholder(inner)
		t.placeholders = append(t.placeholders, placeholder{
			name: name, fmtName: fmtName, fmtArgs: fmtArgs, hasFormat: hasFormat,
		})
		reBuilder.WriteString(fmt.Sprintf("(?P<%s>.+)?", reSafeGroupName(name)))
		last = loc[1]
	}
	reBuilder.WriteString(regexp.QuoteMeta(template[last:]))
	reBuilder.WriteString("$")
	t.matchRe = regexp.MustCompile(reBuilder.String())
	return t
}

// reSafeGroupName mirrors the original's replacement of '.' in field names
// since Go's regexp named groups disallow dots the same way Python's re
// does for named groups.
func reSafeGroupName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func splitPlaceholder(inner string) (name, fmtName string, fmtArgs []string, hasFormat bool) {
	parts := strings.SplitN(inner, ":", 2)
	name = parts[0]
	if len(parts) == 1 {
		return name, "", nil, false
	}
	spec := parts[1]
	if !strings.Contains(spec, "(") {
		return name, spec, nil, spec != ""
	}
	fnParts := strings.SplitN(spec, "(", 2)
	fmtName = fnParts[0]
	argStr := strings.TrimSuffix(fnParts[1], ")")
	if argStr == "" {
		fmtArgs = nil
	} else {
		fmtArgs = strings.Split(argStr, ",")
	}
	return name, fmtName, fmtArgs, true
}

// Format renders a concrete, lowercased key from the given bindings (spec
// §3: "Keys are lowercased"). A missing binding renders as "*", matching the
// original's default-field behavior used when building glob patterns for
// partial argument sets.
func (t *Template) Format(bindings map[string]string) (string, error) {
	var b strings.Builder
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(t.raw, -1) {
		b.WriteString(t.raw[last:loc[0]])
		inner := t.raw[loc[0]+1 : loc[1]-1]
		name, fmtName, fmtArgs, hasFormat := splitPlaceholder(inner)
		value, ok := bindings[name]
		if !ok {
			b.WriteString("*")
			last = loc[1]
			continue
		}
		if hasFormat {
			fn, ok := lookupFormatter(fmtName)
			if !ok {
				b.WriteString(value)
			} else {
				rendered, err := fn(value, fmtArgs)
				if err != nil {
					return "", fmt.Errorf("fluxkv: formatting %q with %q: %w", name, fmtName, err)
				}
				b.WriteString(rendered)
			}
		} else {
			b.WriteString(value)
		}
		last = loc[1]
	}
	b.WriteString(t.raw[last:])
	return strings.ToLower(b.String()), nil
}

// Match extracts bindings back out of a concrete key, the reverse of
// Format. It returns (nil, false) when the key does not match the
// template's shape at all.
func (t *Template) Match(key string) (map[string]string, bool) {
	m := t.matchRe.FindStringSubmatch(key)
	if m == nil {
		return nil, false
	}
	result := make(map[string]string, len(t.placeholders))
	for i, name := range t.matchRe.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		result[name] = m[i]
	}
	return result, true
}

// Raw returns the original template string.
func (t *Template) Raw() string { return t.raw }

// PlaceholderNames returns the template's placeholder names, deduplicated
// and sorted alphabetically, useful for rendering a tag template with the
// same bindings the key used (spec §4.6).
func (t *Template) PlaceholderNames() []string {
	names := make([]string, 0, len(t.placeholders))
	seen := map[string]bool{}
	for _, p := range t.placeholders {
		if !seen[p.name] {
			seen[p.name] = true
			names = append(names, p.name)
		}
	}
	sort.Strings(names)
	return names
}

func lenFormatter(value string, _ []string) (string, error) {
	return fmt.Sprintf("%d", len([]rune(value))), nil
}

func lowerFormatter(value string, _ []string) (string, error) {
	return strings.ToLower(value), nil
}

func upperFormatter(value string, _ []string) (string, error) {
	return strings.ToUpper(value), nil
}
