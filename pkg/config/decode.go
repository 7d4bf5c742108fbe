package config

import (
	"fmt"
	"sort"

	"github.com/openfroyo/syringe/pkg/engine"
)

// DecodeService converts a raw service mapping into a typed definition.
// Only the shape of each field is checked here; producer rules are enforced
// by ValidateService.
func DecodeService(name string, raw map[string]any) (engine.ServiceDef, error) {
	var (
		def engine.ServiceDef
		err error
	)
	fail := func(key, format string, args ...any) (engine.ServiceDef, error) {
		return engine.ServiceDef{}, engine.NewConfigError("key %q %s", key, fmt.Sprintf(format, args...)).
			WithCode(engine.CodeInvalidShape)
	}

	for _, key := range sortedKeys(raw) {
		v := raw[key]
		switch key {
		case "class":
			if def.Class, err = optString(v); err != nil {
				return fail(key, "must be a string, got %T", v)
			}
		case "aliasOf":
			if def.AliasOf, err = optString(v); err != nil {
				return fail(key, "must be a string, got %T", v)
			}
		case "extends":
			if def.Extends, err = optString(v); err != nil {
				return fail(key, "must be a string, got %T", v)
			}
		case "factoryClass":
			if def.FactoryClass, err = optString(v); err != nil {
				return fail(key, "must be a string, got %T", v)
			}
		case "factoryService":
			if def.FactoryService, err = optString(v); err != nil {
				return fail(key, "must be a string, got %T", v)
			}
		case "factoryMethod":
			if def.FactoryMethod, err = optString(v); err != nil {
				return fail(key, "must be a string, got %T", v)
			}
		case "abstract":
			if def.Abstract, err = optBool(v); err != nil {
				return fail(key, "must be a boolean, got %T", v)
			}
		case "override":
			if def.Override, err = optBool(v); err != nil {
				return fail(key, "must be a boolean, got %T", v)
			}
		case "arguments":
			if def.Arguments, err = optList(v); err != nil {
				return fail(key, "must be a list, got %T", v)
			}
		case "factoryArguments":
			if def.FactoryArguments, err = optList(v); err != nil {
				return fail(key, "must be a list, got %T", v)
			}
		case "calls":
			if def.Calls, err = DecodeCalls(v); err != nil {
				return engine.ServiceDef{}, engine.Wrap(err, "calls")
			}
		case "tags":
			if def.Tags, err = decodeTags(v); err != nil {
				return engine.ServiceDef{}, engine.Wrap(err, "tags")
			}
		default:
			return engine.ServiceDef{}, engine.NewConfigError("invalid key %q in service %q", key, name).
				WithCode(engine.CodeInvalidKey)
		}
	}
	return def, nil
}

// DecodeCalls converts a raw list of {method, arguments} mappings.
func DecodeCalls(v any) ([]engine.MethodCall, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, engine.NewConfigError("calls must be a list, got %T", v).WithCode(engine.CodeInvalidShape)
	}

	calls := make([]engine.MethodCall, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, engine.NewConfigError("call %d must be a mapping, got %T", i, item).WithCode(engine.CodeInvalidShape)
		}
		var call engine.MethodCall
		for key, val := range m {
			switch key {
			case "method":
				s, ok := val.(string)
				if !ok {
					return nil, engine.NewConfigError("call %d: method must be a string, got %T", i, val).
						WithCode(engine.CodeInvalidShape)
				}
				call.Method = s
			case "arguments":
				args, err := optList(val)
				if err != nil {
					return nil, engine.NewConfigError("call %d: arguments must be a list, got %T", i, val).
						WithCode(engine.CodeInvalidShape)
				}
				call.Arguments = args
			default:
				return nil, engine.NewConfigError("call %d: invalid key %q", i, key).WithCode(engine.CodeInvalidKey)
			}
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// decodeTags accepts a list of tag names or a mapping of tag name to alias.
// The mapping form is ordered by tag name.
func decodeTags(v any) ([]engine.TagRef, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		tags := make([]engine.TagRef, 0, len(t))
		for i, item := range t {
			name, ok := item.(string)
			if !ok {
				return nil, engine.NewConfigError("tag %d must be a string, got %T", i, item).WithCode(engine.CodeInvalidShape)
			}
			tags = append(tags, engine.TagRef{Name: name})
		}
		return tags, nil
	case map[string]any:
		tags := make([]engine.TagRef, 0, len(t))
		for _, name := range sortedKeys(t) {
			alias, err := optString(t[name])
			if err != nil {
				return nil, engine.NewConfigError("alias of tag %q must be a string, got %T", name, t[name]).
					WithCode(engine.CodeInvalidShape)
			}
			tags = append(tags, engine.TagRef{Name: name, Alias: alias})
		}
		return tags, nil
	default:
		return nil, engine.NewConfigError("tags must be a list or a mapping, got %T", v).WithCode(engine.CodeInvalidShape)
	}
}

func optString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	default:
		return "", fmt.Errorf("not a string")
	}
}

func optBool(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	default:
		return false, fmt.Errorf("not a boolean")
	}
}

// optList returns nil for an absent value and a non-nil slice otherwise, so
// an explicit empty list stays distinguishable from a missing key.
func optList(v any) ([]any, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []any:
		if len(l) == 0 {
			return []any{}, nil
		}
		return l, nil
	default:
		return nil, fmt.Errorf("not a list")
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
