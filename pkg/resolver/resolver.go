package resolver

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/token"
)

// DefaultMaxDepth bounds the depth of nested parameter references.
const DefaultMaxDepth = 100

// Resolver substitutes parameter, environment and constant tokens and turns
// service and tag references into deferred markers.
//
// Within a string, parameters are substituted first, then environment
// variables, then constants. Text inserted by a parameter is still scanned
// for environment and constant tokens; text inserted by an environment
// variable or a constant is final. A token that spans the whole string is
// replaced by the referenced value with its type preserved. An embedded
// token must resolve to a string or a number.
//
// A Resolver memoizes parameter values and is not safe for concurrent use.
type Resolver struct {
	params        map[string]any
	env           engine.Environment
	constants     engine.Constants
	maxDepth      int
	allowUnsetEnv bool
	logger        zerolog.Logger

	values    map[string]any
	texts     map[string]string
	stack     []string
	envSeen   map[string]string
	constSeen map[string]any
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnvironment sets the environment variable source.
func WithEnvironment(env engine.Environment) Option {
	return func(r *Resolver) { r.env = env }
}

// WithConstants sets the host constant source.
func WithConstants(c engine.Constants) Option {
	return func(r *Resolver) { r.constants = c }
}

// WithMaxDepth bounds the depth of nested parameter references.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) { r.maxDepth = n }
}

// WithAllowUnsetEnv resolves unset environment variables to "" instead of
// failing.
func WithAllowUnsetEnv(allow bool) Option {
	return func(r *Resolver) { r.allowUnsetEnv = allow }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a resolver over the merged parameters.
func New(params map[string]any, opts ...Option) *Resolver {
	r := &Resolver{
		params:    params,
		env:       OSEnvironment{},
		constants: MapConstants{},
		maxDepth:  DefaultMaxDepth,
		logger:    zerolog.Nop(),
		values:    make(map[string]any),
		texts:     make(map[string]string),
		envSeen:   make(map[string]string),
		constSeen: make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "resolver").Logger()
	return r
}

// Resolve resolves every token inside value.
func (r *Resolver) Resolve(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.resolveString(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(v))
		for _, k := range keys {
			rv, err := r.Resolve(v[k])
			if err != nil {
				return nil, engine.Wrapf(err, "key %q", k)
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			rv, err := r.Resolve(e)
			if err != nil {
				return nil, engine.Wrapf(err, "[%d]", i)
			}
			out[i] = rv
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveString resolves s and requires the result to be a string.
func (r *Resolver) ResolveString(s string) (string, error) {
	v, err := r.Resolve(s)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", engine.NewConfigError("%q must resolve to a string, got %s", s, describe(v)).
			WithCode(engine.CodeNotInterpolable)
	}
	return str, nil
}

// ResolveParameter returns the fully resolved value of one parameter.
func (r *Resolver) ResolveParameter(name string) (any, error) {
	return r.parameterValue(name)
}

// ResolveParameters resolves every parameter.
func (r *Resolver) ResolveParameters() (map[string]any, error) {
	keys := make([]string, 0, len(r.params))
	for k := range r.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, err := r.ResolveParameter(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// ObservedEnv returns every environment variable read so far and the value
// it resolved to.
func (r *Resolver) ObservedEnv() map[string]string {
	out := make(map[string]string, len(r.envSeen))
	for k, v := range r.envSeen {
		out[k] = v
	}
	return out
}

// ObservedConstants returns every constant read so far and its value.
func (r *Resolver) ObservedConstants() map[string]any {
	out := make(map[string]any, len(r.constSeen))
	for k, v := range r.constSeen {
		out[k] = v
	}
	return out
}

func (r *Resolver) resolveString(s string) (any, error) {
	if s == "" {
		return s, nil
	}
	switch ref := token.Classify(s); {
	case ref.Marker:
		return s, nil
	case ref.Kind == token.KindService:
		return token.ServiceMarker(ref.Name), nil
	case ref.Kind == token.KindTag:
		return token.TagMarker(ref.Name), nil
	}

	v, final, err := r.replaceParameters(s)
	if err != nil || final {
		return v, err
	}

	pieces := []piece{{text: v.(string)}}
	for _, pass := range []struct {
		delim  byte
		kind   string
		lookup func(string) (any, error)
	}{
		{token.Env, "environment variable", r.lookupEnv},
		{token.Constant, "constant", r.lookupConstant},
	} {
		native, ok, next, err := r.substitute(pieces, pass.delim, pass.kind, pass.lookup)
		if err != nil || ok {
			return native, err
		}
		pieces = next
	}
	return joinPieces(pieces), nil
}

// replaceParameters substitutes the parameter tokens of s. When one token
// spans all of s, the parameter's fully resolved value is returned as final.
func (r *Resolver) replaceParameters(s string) (any, bool, error) {
	if strings.IndexByte(s, token.Parameter) < 0 {
		return s, false, nil
	}
	segs, err := token.Split(s, token.Parameter)
	if err != nil {
		return nil, false, unevenError(token.Parameter, s)
	}
	if len(segs) == 1 && segs[0].Ref {
		v, err := r.parameterValue(segs[0].Text)
		return v, true, err
	}
	text, err := r.joinParameters(segs, s)
	return text, false, err
}

// interpolate substitutes every parameter token of s as text.
func (r *Resolver) interpolate(s string) (string, error) {
	if strings.IndexByte(s, token.Parameter) < 0 {
		return s, nil
	}
	segs, err := token.Split(s, token.Parameter)
	if err != nil {
		return "", unevenError(token.Parameter, s)
	}
	return r.joinParameters(segs, s)
}

func (r *Resolver) joinParameters(segs []token.Segment, source string) (string, error) {
	var b strings.Builder
	for _, seg := range segs {
		if !seg.Ref {
			b.WriteString(seg.Text)
			continue
		}
		text, err := r.parameterText(seg.Text, source)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// parameterValue returns the fully resolved value of a parameter.
func (r *Resolver) parameterValue(name string) (any, error) {
	if v, ok := r.values[name]; ok {
		return engine.CloneValue(v), nil
	}
	raw, ok := r.params[name]
	if !ok {
		return nil, missingParameter(name)
	}

	if err := r.enter(name); err != nil {
		return nil, err
	}
	v, err := r.Resolve(raw)
	r.leave()
	if err != nil {
		return nil, engine.Wrapf(err, "parameter %q", name)
	}

	r.values[name] = v
	return engine.CloneValue(v), nil
}

// parameterText returns a parameter as text for embedding. Its own parameter
// tokens are substituted; environment and constant tokens are left for the
// enclosing string's later passes.
func (r *Resolver) parameterText(name, source string) (string, error) {
	if t, ok := r.texts[name]; ok {
		return t, nil
	}
	raw, ok := r.params[name]
	if !ok {
		return "", missingParameter(name)
	}

	if err := r.enter(name); err != nil {
		return "", err
	}
	defer r.leave()

	var text string
	switch v := raw.(type) {
	case string:
		if isReference(v) {
			return "", notInterpolable("parameter", name, source, v)
		}
		t, err := r.interpolate(v)
		if err != nil {
			return "", engine.Wrapf(err, "parameter %q", name)
		}
		text = t
	default:
		s, ok := formatScalar(v)
		if !ok {
			return "", notInterpolable("parameter", name, source, v)
		}
		text = s
	}

	r.texts[name] = text
	return text, nil
}

func (r *Resolver) enter(name string) error {
	if i := slices.Index(r.stack, name); i >= 0 {
		cycle := append(slices.Clone(r.stack[i:]), name)
		return engine.NewConfigError("circular reference: %s", strings.Join(cycle, " -> ")).
			WithCode(engine.CodeCircularReference)
	}
	if len(r.stack) >= r.maxDepth {
		return engine.NewRecursionError("parameter references nest deeper than %d levels at %q", r.maxDepth, name)
	}
	r.stack = append(r.stack, name)
	return nil
}

func (r *Resolver) leave() {
	r.stack = r.stack[:len(r.stack)-1]
}

func (r *Resolver) lookupEnv(name string) (any, error) {
	v, ok := r.env.LookupEnv(name)
	switch {
	case !ok && !r.allowUnsetEnv:
		return nil, engine.NewConfigError("referenced environment variable %q is not set", name).
			WithCode(engine.CodeMissingEnv)
	case !ok:
		r.logger.Warn().Str("variable", name).Msg("environment variable is not set, resolving to an empty string")
	case v == "":
		r.logger.Warn().Str("variable", name).Msg("environment variable is empty")
	}
	r.envSeen[name] = v
	return v, nil
}

func (r *Resolver) lookupConstant(name string) (any, error) {
	v, ok := r.constants.LookupConstant(name)
	if !ok {
		return nil, engine.NewConfigError("referenced constant %q does not exist", name).
			WithCode(engine.CodeMissingConstant)
	}
	r.constSeen[name] = v
	return v, nil
}

// piece is a fragment of a string under substitution. Final pieces hold
// inserted values and are not scanned again.
type piece struct {
	text  string
	final bool
}

// substitute replaces the delim tokens found in the non-final pieces. When
// a single token spans the whole string, its value is returned unchanged
// with ok set.
func (r *Resolver) substitute(pieces []piece, delim byte, kind string, lookup func(string) (any, error)) (any, bool, []piece, error) {
	if len(pieces) == 1 && !pieces[0].final {
		if name, ok := token.FullSpan(pieces[0].text, delim); ok {
			v, err := lookup(name)
			return v, true, nil, err
		}
	}

	out := make([]piece, 0, len(pieces))
	for _, p := range pieces {
		if p.final || strings.IndexByte(p.text, delim) < 0 {
			out = append(out, p)
			continue
		}
		segs, err := token.Split(p.text, delim)
		if err != nil {
			return nil, false, nil, unevenError(delim, p.text)
		}
		for _, seg := range segs {
			if !seg.Ref {
				out = append(out, piece{text: seg.Text})
				continue
			}
			v, err := lookup(seg.Text)
			if err != nil {
				return nil, false, nil, err
			}
			s, ok := formatScalar(v)
			if !ok {
				return nil, false, nil, notInterpolable(kind, seg.Text, p.text, v)
			}
			out = append(out, piece{text: s, final: true})
		}
	}
	return nil, false, out, nil
}

func joinPieces(pieces []piece) string {
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(p.text)
	}
	return b.String()
}

// formatScalar renders strings and numbers as text.
func formatScalar(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		if token.IsMarker(n) {
			return "", false
		}
		return n, true
	case json.Number:
		return n.String(), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(n), true
	default:
		return "", false
	}
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "a mapping"
	case []any:
		return "a list"
	case bool:
		return "a boolean"
	case string:
		if isReference(x) {
			return "a " + token.Classify(x).Kind.String() + " reference"
		}
		return "a string"
	default:
		return fmt.Sprintf("a %T", v)
	}
}

// isReference reports whether s names a service or a tag, by sigil or as a
// deferred marker.
func isReference(s string) bool {
	kind := token.Classify(s).Kind
	return kind == token.KindService || kind == token.KindTag
}

func missingParameter(name string) error {
	return engine.NewConfigError("referenced parameter %q does not exist", name).
		WithCode(engine.CodeMissingParameter)
}

func notInterpolable(kind, name, source string, v any) error {
	return engine.NewConfigError(
		"%s %q embedded in %q is %s; only strings and numbers can be part of a larger string",
		kind, name, source, describe(v)).
		WithCode(engine.CodeNotInterpolable)
}

func unevenError(delim byte, s string) error {
	return engine.NewConfigError("uneven number of %q delimiters in %q", string(delim), s).
		WithCode(engine.CodeUnevenDelimiters)
}
