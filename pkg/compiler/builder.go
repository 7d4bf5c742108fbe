package compiler

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/config"
	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/resolver"
	"github.com/openfroyo/syringe/pkg/state"
	"github.com/openfroyo/syringe/pkg/token"
)

// DefaultMaxExtendsDepth bounds the length of an extends chain.
const DefaultMaxExtendsDepth = 64

// Source is the merged configuration a CompiledConfigBuilder consumes.
// *aggregate.AggregateConfig implements it.
type Source interface {
	Parameters() map[string]any
	Services() (*engine.Ordered[engine.ServiceDef], error)
	Extensions() *engine.Ordered[[]engine.MethodCall]
}

// CompiledConfigBuilder expands inheritance, applies extensions, indexes
// tags and resolves every value of a merged configuration.
type CompiledConfigBuilder struct {
	resolverOpts    []resolver.Option
	maxExtendsDepth int
	logger          zerolog.Logger
}

// BuilderOption configures a CompiledConfigBuilder.
type BuilderOption func(*CompiledConfigBuilder)

// WithResolverOptions passes options to the resolver used by Build.
func WithResolverOptions(opts ...resolver.Option) BuilderOption {
	return func(b *CompiledConfigBuilder) { b.resolverOpts = append(b.resolverOpts, opts...) }
}

// WithBuilderMaxExtendsDepth bounds the length of an extends chain.
func WithBuilderMaxExtendsDepth(n int) BuilderOption {
	return func(b *CompiledConfigBuilder) { b.maxExtendsDepth = n }
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(l zerolog.Logger) BuilderOption {
	return func(b *CompiledConfigBuilder) { b.logger = l }
}

// NewCompiledConfigBuilder creates a builder.
func NewCompiledConfigBuilder(opts ...BuilderOption) *CompiledConfigBuilder {
	b := &CompiledConfigBuilder{
		maxExtendsDepth: DefaultMaxExtendsDepth,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "compiler").Logger()
	return b
}

// Build produces the compiled configuration. extra overrides parameters
// declared in files. The result's State carries the environment variables
// and constants resolution read, without file state.
func (b *CompiledConfigBuilder) Build(src Source, extra map[string]any) (*CompiledConfig, error) {
	services, err := src.Services()
	if err != nil {
		return nil, err
	}

	abstracts := make(map[string]engine.ServiceDef)
	concrete := engine.NewOrdered[engine.ServiceDef]()
	for _, name := range services.Keys() {
		def, _ := services.Get(name)
		if err := config.ValidateService(name, def); err != nil {
			return nil, err
		}
		if def.Abstract {
			abstracts[name] = def
			continue
		}
		concrete.Set(name, def)
	}

	params := src.Parameters()
	for k, v := range extra {
		params[k] = engine.NormalizeValue(v)
	}
	r := resolver.New(params, append([]resolver.Option{resolver.WithLogger(b.logger)}, b.resolverOpts...)...)

	aliases, err := b.buildAliases(r, concrete)
	if err != nil {
		return nil, err
	}

	expanded := engine.NewOrdered[engine.ServiceDef]()
	for _, name := range concrete.Keys() {
		def, _ := concrete.Get(name)
		if def.IsAlias() {
			continue
		}
		def, err := b.expand(name, def, abstracts)
		if err != nil {
			return nil, err
		}
		expanded.Set(name, def)
	}

	if err := applyExtensions(expanded, aliases, src.Extensions()); err != nil {
		return nil, err
	}

	resolvedParams, err := r.ResolveParameters()
	if err != nil {
		return nil, err
	}

	cfg := &CompiledConfig{
		Services:   make(map[string]engine.ServiceDef, expanded.Len()),
		Aliases:    aliases,
		Parameters: resolvedParams,
		Tags:       make(map[string][]engine.TagEntry),
		CompiledAt: time.Now().UTC(),
	}
	for _, name := range expanded.Keys() {
		def, _ := expanded.Get(name)
		resolved, err := resolveService(r, def)
		if err != nil {
			return nil, engine.Wrapf(err, "service %q", name)
		}
		cfg.Services[name] = resolved

		for _, tag := range def.Tags {
			cfg.Tags[tag.Name] = append(cfg.Tags[tag.Name], engine.TagEntry{Service: name, Alias: tag.Alias})
		}
	}

	cfg.State = &state.Snapshot{
		Env:       r.ObservedEnv(),
		Constants: r.ObservedConstants(),
	}

	b.logger.Debug().
		Int("services", len(cfg.Services)).
		Int("aliases", len(cfg.Aliases)).
		Int("abstract", len(abstracts)).
		Int("parameters", len(cfg.Parameters)).
		Int("tags", len(cfg.Tags)).
		Msg("built compiled configuration")
	return cfg, nil
}

// buildAliases records every aliasOf definition and checks that each alias
// ends at a concrete service.
func (b *CompiledConfigBuilder) buildAliases(r *resolver.Resolver, services *engine.Ordered[engine.ServiceDef]) (map[string]string, error) {
	aliases := make(map[string]string)
	for _, name := range services.Keys() {
		def, _ := services.Get(name)
		if !def.IsAlias() {
			continue
		}
		target, err := r.ResolveString(strings.TrimPrefix(def.AliasOf, string(token.Service)))
		if err != nil {
			return nil, engine.Wrapf(engine.Wrap(err, "aliasOf"), "service %q", name)
		}
		aliases[name] = target
	}

	for name := range aliases {
		chain := []string{name}
		for current := aliases[name]; ; current = aliases[current] {
			def, ok := services.Get(current)
			if !ok {
				return nil, engine.NewConfigError("service %q is an alias of %q, which does not exist", name, current).
					WithCode(engine.CodeDanglingAlias)
			}
			if !def.IsAlias() {
				break
			}
			for _, seen := range chain {
				if seen == current {
					return nil, engine.NewConfigError("circular alias: %s", strings.Join(append(chain, current), " -> ")).
						WithCode(engine.CodeCircularReference)
				}
			}
			chain = append(chain, current)
		}
	}
	return aliases, nil
}

// expand splices the extends chain of def into it. Fields set on the child
// win; calls are concatenated child first.
func (b *CompiledConfigBuilder) expand(name string, def engine.ServiceDef, abstracts map[string]engine.ServiceDef) (engine.ServiceDef, error) {
	def = def.Clone()
	visited := map[string]bool{name: true}
	chain := []string{name}

	for depth := 0; def.Extends != ""; depth++ {
		if depth >= b.maxExtendsDepth {
			return engine.ServiceDef{}, engine.NewRecursionError("service %q extends more than %d levels", name, b.maxExtendsDepth)
		}
		parentName := strings.TrimPrefix(def.Extends, string(token.Service))
		chain = append(chain, parentName)
		if visited[parentName] {
			return engine.ServiceDef{}, engine.NewConfigError("circular extends: %s", strings.Join(chain, " -> ")).
				WithCode(engine.CodeCircularReference)
		}
		visited[parentName] = true

		parent, ok := abstracts[parentName]
		if !ok {
			return engine.ServiceDef{}, engine.NewConfigError("service %q extends %q, which is not a defined abstract service", name, parentName).
				WithCode(engine.CodeDanglingAlias)
		}
		def = inherit(def, parent.Clone())
		b.logger.Debug().Str("service", name).Str("parent", parentName).Msg("expanded abstract parent")
	}

	if err := config.CheckProducer(name, def); err != nil {
		return engine.ServiceDef{}, err
	}
	return def, nil
}

func inherit(child, parent engine.ServiceDef) engine.ServiceDef {
	out := child
	out.Extends = parent.Extends
	if out.Class == "" {
		out.Class = parent.Class
	}
	if out.Arguments == nil {
		out.Arguments = parent.Arguments
	}
	if out.FactoryClass == "" && out.FactoryService == "" {
		out.FactoryClass = parent.FactoryClass
		out.FactoryService = parent.FactoryService
	}
	if out.FactoryMethod == "" {
		out.FactoryMethod = parent.FactoryMethod
	}
	if out.FactoryArguments == nil {
		out.FactoryArguments = parent.FactoryArguments
	}
	if out.Tags == nil {
		out.Tags = parent.Tags
	}
	if len(parent.Calls) > 0 {
		out.Calls = append(append([]engine.MethodCall(nil), child.Calls...), parent.Calls...)
	}
	return out
}

// applyExtensions appends extension calls to their target services.
func applyExtensions(services *engine.Ordered[engine.ServiceDef], aliases map[string]string, extensions *engine.Ordered[[]engine.MethodCall]) error {
	for _, name := range extensions.Keys() {
		calls, _ := extensions.Get(name)
		target := name
		for range len(aliases) {
			next, ok := aliases[target]
			if !ok {
				break
			}
			target = next
		}

		def, ok := services.Get(target)
		if !ok {
			return engine.NewConfigError("extension targets service %q, which does not exist", name).
				WithCode(engine.CodeMissingService)
		}
		def.Calls = append(append([]engine.MethodCall(nil), def.Calls...), calls...)
		services.Set(target, def)
	}
	return nil
}

// resolveService resolves every value of an expanded definition.
func resolveService(r *resolver.Resolver, def engine.ServiceDef) (engine.ServiceDef, error) {
	var (
		out engine.ServiceDef
		err error
	)
	out.Tags = def.Tags

	if out.Class, err = resolveOptString(r, def.Class); err != nil {
		return out, engine.Wrap(err, "class")
	}
	if out.Arguments, err = resolveList(r, def.Arguments); err != nil {
		return out, engine.Wrap(err, "arguments")
	}
	if out.FactoryClass, err = resolveOptString(r, def.FactoryClass); err != nil {
		return out, engine.Wrap(err, "factoryClass")
	}
	if out.FactoryService, err = resolveOptString(r, strings.TrimPrefix(def.FactoryService, string(token.Service))); err != nil {
		return out, engine.Wrap(err, "factoryService")
	}
	if out.FactoryMethod, err = resolveOptString(r, def.FactoryMethod); err != nil {
		return out, engine.Wrap(err, "factoryMethod")
	}
	if out.FactoryArguments, err = resolveList(r, def.FactoryArguments); err != nil {
		return out, engine.Wrap(err, "factoryArguments")
	}

	if def.Calls != nil {
		out.Calls = make([]engine.MethodCall, len(def.Calls))
		for i, call := range def.Calls {
			method, err := r.ResolveString(call.Method)
			if err != nil {
				return out, engine.Wrapf(err, "calls[%d]", i)
			}
			args, err := resolveList(r, call.Arguments)
			if err != nil {
				return out, engine.Wrapf(err, "calls[%d] arguments", i)
			}
			out.Calls[i] = engine.MethodCall{Method: method, Arguments: args}
		}
	}
	return out, nil
}

func resolveOptString(r *resolver.Resolver, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return r.ResolveString(s)
}

func resolveList(r *resolver.Resolver, list []any) ([]any, error) {
	if list == nil {
		return nil, nil
	}
	v, err := r.Resolve(list)
	if err != nil {
		return nil, err
	}
	return v.([]any), nil
}
