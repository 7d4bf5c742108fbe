package policy

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/openfroyo/syringe/pkg/compiler"
	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/token"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Input is the document policies receive as input. Deferred service and tag
// markers are rendered back to their "@name" and "#name" form, and every
// reference is also listed in References.
type Input struct {
	Services   map[string]engine.ServiceDef `json:"services"`
	Aliases    map[string]string            `json:"aliases"`
	Parameters map[string]any               `json:"parameters"`
	Tags       map[string][]engine.TagEntry `json:"tags"`
	Files      []string                     `json:"files"`
	References []Reference                  `json:"references"`
}

// NewInput builds the policy input for a compiled configuration.
func NewInput(cfg *compiler.CompiledConfig) *Input {
	in := &Input{
		Services:   make(map[string]engine.ServiceDef, len(cfg.Services)),
		Aliases:    make(map[string]string, len(cfg.Aliases)),
		Parameters: make(map[string]any, len(cfg.Parameters)),
		Tags:       make(map[string][]engine.TagEntry, len(cfg.Tags)),
		Files:      append([]string{}, cfg.Files...),
		References: []Reference{},
	}
	for k, v := range cfg.Aliases {
		in.Aliases[k] = v
	}
	for k, v := range cfg.Parameters {
		in.Parameters[k] = v
	}
	for k, v := range cfg.Tags {
		in.Tags[k] = v
	}

	for _, name := range cfg.ServiceNames() {
		def := cfg.Services[name].Clone()
		c := collector{cfg: cfg, service: name}

		def.Arguments = c.render(def.Arguments, "arguments")
		def.FactoryArguments = c.render(def.FactoryArguments, "factoryArguments")
		for i := range def.Calls {
			def.Calls[i].Arguments = c.render(def.Calls[i].Arguments, "calls."+def.Calls[i].Method)
		}
		if def.FactoryService != "" {
			c.add(token.KindService, def.FactoryService, "factoryService")
		}

		in.Services[name] = def
		in.References = append(in.References, c.refs...)
	}
	return in
}

// value converts the input into the plain JSON shape OPA evaluates.
func (in *Input) value() (any, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type collector struct {
	cfg     *compiler.CompiledConfig
	service string
	refs    []Reference
}

func (c *collector) render(values []any, location string) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = c.renderValue(v, location)
	}
	return out
}

func (c *collector) renderValue(v any, location string) any {
	switch val := v.(type) {
	case string:
		ref, ok := token.ParseMarker(val)
		if !ok {
			return val
		}
		c.add(ref.Kind, ref.Name, location)
		if ref.Kind == token.KindTag {
			return string(token.Tag) + ref.Name
		}
		return string(token.Service) + ref.Name
	case []any:
		return c.render(val, location)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = c.renderValue(e, location)
		}
		return out
	default:
		return v
	}
}

func (c *collector) add(kind token.Kind, target, location string) {
	ref := Reference{
		Service:  c.service,
		Kind:     kind.String(),
		Target:   target,
		Resolved: target,
		Location: location,
	}
	if kind == token.KindService {
		ref.Resolved = c.resolve(target)
	}
	c.refs = append(c.refs, ref)
}

// resolve follows aliases. The chain is bounded by the alias count.
func (c *collector) resolve(name string) string {
	for range len(c.cfg.Aliases) {
		next, ok := c.cfg.Aliases[name]
		if !ok {
			break
		}
		name = next
	}
	return name
}
