package compiler

import (
	"bytes"
	"sort"
	"time"

	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/state"
)

// CompiledConfig is the fully resolved configuration. Parameter, constant
// and environment tokens are gone; service and tag references remain as
// deferred markers for the container to look up.
type CompiledConfig struct {
	Services   map[string]engine.ServiceDef `json:"services" yaml:"services"`
	Aliases    map[string]string            `json:"aliases" yaml:"aliases"`
	Parameters map[string]any               `json:"parameters" yaml:"parameters"`
	Tags       map[string][]engine.TagEntry `json:"tags" yaml:"tags"`
	Files      []string                     `json:"files,omitempty" yaml:"files,omitempty"`
	State      *state.Snapshot              `json:"state,omitempty" yaml:"state,omitempty"`
	CompiledAt time.Time                    `json:"compiledAt" yaml:"compiledAt"`
}

// Service returns a service definition, following aliases.
func (c *CompiledConfig) Service(name string) (engine.ServiceDef, bool) {
	for range len(c.Aliases) + 1 {
		if def, ok := c.Services[name]; ok {
			return def, true
		}
		target, ok := c.Aliases[name]
		if !ok {
			break
		}
		name = target
	}
	return engine.ServiceDef{}, false
}

// ServiceNames returns the concrete service names, sorted.
func (c *CompiledConfig) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tagged returns the members of a tag in declaration order.
func (c *CompiledConfig) Tagged(tag string) []engine.TagEntry {
	return c.Tags[tag]
}

// IsValid reports whether every file, environment variable and constant
// this configuration was built from is unchanged. A configuration without
// recorded state is never valid.
func (c *CompiledConfig) IsValid(env engine.Environment, constants engine.Constants, inspector state.FileInspector) bool {
	return c.State.IsValid(env, constants, inspector)
}

// Decode parses a JSON-encoded configuration. Numbers keep the integer or
// float type a fresh compile would give them.
func Decode(data []byte) (*CompiledConfig, error) {
	dec := canonicalJSON.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var cfg CompiledConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	for k, v := range cfg.Parameters {
		cfg.Parameters[k] = engine.NormalizeValue(v)
	}
	for name, def := range cfg.Services {
		def.Arguments = normalizeList(def.Arguments)
		def.FactoryArguments = normalizeList(def.FactoryArguments)
		for i := range def.Calls {
			def.Calls[i].Arguments = normalizeList(def.Calls[i].Arguments)
		}
		cfg.Services[name] = def
	}
	return &cfg, nil
}

func normalizeList(values []any) []any {
	if values == nil {
		return nil
	}
	return engine.NormalizeValue(values).([]any)
}
