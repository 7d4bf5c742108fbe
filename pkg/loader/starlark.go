package loader

import (
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DefaultStarlarkTimeout bounds the execution of one Starlark file.
const DefaultStarlarkTimeout = 10 * time.Second

// StarlarkLoader loads .star files. The file is executed and its exported
// globals become the top-level keys of the document. Globals starting with
// an underscore and functions are left out, so files can define helpers.
type StarlarkLoader struct {
	timeout time.Duration
}

// NewStarlarkLoader creates a Starlark loader. A zero timeout selects
// DefaultStarlarkTimeout.
func NewStarlarkLoader(timeout time.Duration) *StarlarkLoader {
	if timeout == 0 {
		timeout = DefaultStarlarkTimeout
	}
	return &StarlarkLoader{timeout: timeout}
}

// Name returns "starlark".
func (l *StarlarkLoader) Name() string { return "starlark" }

// Supports reports whether path has a Starlark extension.
func (l *StarlarkLoader) Supports(path string) bool {
	return hasExt(path, ".star", ".starlark")
}

// LoadFile executes a Starlark file and converts its globals.
func (l *StarlarkLoader) LoadFile(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{
		Name:  "syringe",
		Print: func(*starlark.Thread, string) {},
	}
	timer := time.AfterFunc(l.timeout, func() {
		thread.Cancel(fmt.Sprintf("execution exceeded %v", l.timeout))
	})
	defer timer.Stop()

	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	globals, err := starlark.ExecFile(thread, path, data, predeclared)
	if err != nil {
		return nil, parseError(path, err)
	}

	doc := make(map[string]any, len(globals))
	for name, val := range globals {
		if name[0] == '_' {
			continue
		}
		switch val.(type) {
		case *starlark.Function, *starlark.Builtin:
			continue
		}
		v, err := fromStarlark(val)
		if err != nil {
			return nil, parseError(path, fmt.Errorf("global %s: %w", name, err))
		}
		doc[name] = v
	}
	return toDocument(path, doc)
}

// fromStarlark converts a Starlark value into a plain document value.
func fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s overflows int64", val)
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return fromIterable(val, val.Len())
	case starlark.Tuple:
		return fromIterable(val, val.Len())
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", item[0])
			}
			elem, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = elem
		}
		return out, nil
	case *starlarkstruct.Struct:
		out := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			elem, err := fromStarlark(attr)
			if err != nil {
				return nil, err
			}
			out[name] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type %s", v.Type())
	}
}

func fromIterable(it starlark.Iterable, n int) ([]any, error) {
	out := make([]any, 0, n)
	iter := it.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		elem, err := fromStarlark(x)
		if err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
	return out, nil
}
