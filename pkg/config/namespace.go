package config

import (
	"strings"

	"github.com/openfroyo/syringe/pkg/token"
)

// Namespace qualifies keys and parameter references of a namespaced file.
// The zero value is the root namespace and leaves everything unchanged.
type Namespace string

// Qualify prefixes key unless it is already namespaced.
func (ns Namespace) Qualify(key string) string {
	return token.Qualify(string(ns), key)
}

// Apply namespaces the references inside a raw configuration value. Strings
// with a service sigil are qualified as service names; every parameter token
// inside literal strings is qualified in place. Tags, constants and environment
// tokens are global and stay untouched. Apply is idempotent.
func (ns Namespace) Apply(value any) any {
	if ns == "" {
		return value
	}
	switch v := value.(type) {
	case string:
		return ns.applyString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = ns.Apply(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = ns.Apply(e)
		}
		return out
	default:
		return value
	}
}

func (ns Namespace) applyString(s string) string {
	switch ref := token.Classify(s); {
	case ref.Marker || ref.Kind == token.KindTag:
		return s
	case ref.Kind == token.KindService:
		return string(token.Service) + ns.Qualify(ref.Name)
	}
	if strings.Count(s, string(token.Parameter)) < 2 {
		return s
	}

	segs, err := token.Split(s, token.Parameter)
	if err != nil {
		// Unpaired delimiters are reported by the resolver with full context.
		return s
	}
	if !token.HasRefs(segs) {
		return s
	}
	for i, seg := range segs {
		if seg.Ref {
			segs[i].Text = ns.Qualify(seg.Text)
		}
	}
	return token.Join(segs, token.Parameter)
}
