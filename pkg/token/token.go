package token

import "strings"

// Sigils and delimiters understood by the configuration language.
const (
	// Service marks a string as a reference to another service ("@mailer").
	Service byte = '@'

	// Tag marks a string as a reference to a tag collection ("#listeners").
	Tag byte = '#'

	// Parameter delimits a parameter reference ("%db.host%").
	Parameter byte = '%'

	// Constant delimits a host constant reference ("^PHP_EOL^").
	Constant byte = '^'

	// Env delimits an environment variable reference ("$HOME$").
	Env byte = '$'

	// NamespaceSeparator joins a namespace and a key ("lib::service").
	NamespaceSeparator = "::"

	// markerPrefix is the control byte that starts a deferred reference marker.
	markerPrefix = "\x00"
)

// Kind classifies a configuration string.
type Kind int

// Kinds of configuration strings.
const (
	KindLiteral Kind = iota
	KindService
	KindTag
	KindParameter
	KindConstant
	KindEnv
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindTag:
		return "tag"
	case KindParameter:
		return "parameter"
	case KindConstant:
		return "constant"
	case KindEnv:
		return "env"
	default:
		return "literal"
	}
}

var delimited = []struct {
	delim byte
	kind  Kind
}{
	{Parameter, KindParameter},
	{Env, KindEnv},
	{Constant, KindConstant},
}

// Reference is a classified configuration string. Name holds the referenced
// identifier without its sigil or delimiters; for literals it holds the raw text.
type Reference struct {
	Kind   Kind
	Name   string
	Marker bool
}

// Classify inspects a raw configuration string. Service and tag references are
// recognized by their leading sigil, resolved markers by the marker prefix, and
// parameter, constant and env references only when one delimited token spans
// the whole string.
func Classify(s string) Reference {
	if ref, ok := ParseMarker(s); ok {
		return ref
	}
	if s == "" {
		return Reference{Kind: KindLiteral}
	}

	switch s[0] {
	case Service:
		return Reference{Kind: KindService, Name: s[1:]}
	case Tag:
		return Reference{Kind: KindTag, Name: s[1:]}
	}

	for _, d := range delimited {
		if name, ok := FullSpan(s, d.delim); ok {
			return Reference{Kind: d.kind, Name: name}
		}
	}

	return Reference{Kind: KindLiteral, Name: s}
}

// FullSpan reports whether s is exactly one delimited token, returning its name.
func FullSpan(s string, delim byte) (string, bool) {
	segs, err := Split(s, delim)
	if err != nil || len(segs) != 1 || !segs[0].Ref {
		return "", false
	}
	return segs[0].Text, true
}

// ServiceMarker returns the deferred marker for a service reference.
func ServiceMarker(name string) string {
	return markerPrefix + string(Service) + name
}

// TagMarker returns the deferred marker for a tag reference.
func TagMarker(name string) string {
	return markerPrefix + string(Tag) + name
}

// IsMarker reports whether s is a deferred reference marker.
func IsMarker(s string) bool {
	_, ok := ParseMarker(s)
	return ok
}

// ParseMarker decodes a deferred reference marker.
func ParseMarker(s string) (Reference, bool) {
	if len(s) < 2 || !strings.HasPrefix(s, markerPrefix) {
		return Reference{}, false
	}
	switch s[1] {
	case Service:
		return Reference{Kind: KindService, Name: s[2:], Marker: true}, true
	case Tag:
		return Reference{Kind: KindTag, Name: s[2:], Marker: true}, true
	}
	return Reference{}, false
}

// IsNamespaced reports whether a key already carries a namespace prefix.
func IsNamespaced(key string) bool {
	return strings.Contains(key, NamespaceSeparator)
}

// Qualify prefixes key with namespace unless it is already namespaced.
func Qualify(namespace, key string) string {
	if namespace == "" || IsNamespaced(key) {
		return key
	}
	return namespace + NamespaceSeparator + key
}
