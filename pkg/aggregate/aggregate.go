package aggregate

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/config"
	"github.com/openfroyo/syringe/pkg/engine"
)

// AggregateConfig merges the entries of many files. Entries are folded in
// ascending weight order and, within a weight, in the order they were added,
// so a later file overrides an earlier one of the same weight.
type AggregateConfig struct {
	parameters []config.Entry[any]
	services   []config.Entry[engine.ServiceDef]
	extensions []config.Entry[[]engine.MethodCall]
	files      []string
	logger     zerolog.Logger
}

// Option configures an AggregateConfig.
type Option func(*AggregateConfig)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *AggregateConfig) { a.logger = l }
}

// New creates an empty aggregate.
func New(opts ...Option) *AggregateConfig {
	a := &AggregateConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("component", "aggregate").Logger()
	return a
}

// AddFileConfig appends the namespaced entries of f.
func (a *AggregateConfig) AddFileConfig(f *config.FileUnit) error {
	services, err := f.NamespacedServices()
	if err != nil {
		return err
	}
	extensions, err := f.NamespacedExtensions()
	if err != nil {
		return err
	}

	a.parameters = append(a.parameters, f.NamespacedParameters()...)
	a.services = append(a.services, services...)
	a.extensions = append(a.extensions, extensions...)
	a.files = append(a.files, f.Filename())

	a.logger.Debug().
		Str("file", f.Filename()).
		Int("parameters", len(f.NamespacedParameters())).
		Int("services", len(services)).
		Int("extensions", len(extensions)).
		Msg("added file to aggregate")
	return nil
}

// Files returns the filenames added so far, without duplicates, in order.
func (a *AggregateConfig) Files() []string {
	seen := make(map[string]bool, len(a.files))
	out := make([]string, 0, len(a.files))
	for _, f := range a.files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Parameters returns the merged parameters. The highest weight wins.
func (a *AggregateConfig) Parameters() map[string]any {
	params := make(map[string]any)
	for _, e := range byWeight(a.parameters) {
		params[e.Name] = e.Value
	}
	return params
}

// Services returns the merged service definitions. Replacing an existing
// definition requires the replacement to declare aliasOf or override.
func (a *AggregateConfig) Services() (*engine.Ordered[engine.ServiceDef], error) {
	services := engine.NewOrdered[engine.ServiceDef]()
	for _, e := range byWeight(a.services) {
		if services.Has(e.Name) && !e.Value.IsAlias() && !e.Value.Override {
			return nil, engine.NewConfigError(
				"overwriting existing service %q. Services can only be overwritten using either aliasOf or override", e.Name).
				WithCode(engine.CodeDuplicateService)
		}
		services.Set(e.Name, e.Value)
	}
	return services, nil
}

// Extensions returns the merged extensions. Call lists for the same service
// are concatenated in merge order.
func (a *AggregateConfig) Extensions() *engine.Ordered[[]engine.MethodCall] {
	extensions := engine.NewOrdered[[]engine.MethodCall]()
	for _, e := range byWeight(a.extensions) {
		existing, _ := extensions.Get(e.Name)
		extensions.Set(e.Name, append(append([]engine.MethodCall(nil), existing...), e.Value...))
	}
	return extensions
}

// byWeight returns a copy of entries stably sorted by ascending weight.
func byWeight[T any](entries []config.Entry[T]) []config.Entry[T] {
	sorted := append([]config.Entry[T](nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight < sorted[j].Weight
	})
	return sorted
}
