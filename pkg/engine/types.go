package engine

// ServiceDef is a declarative recipe for building one service. Arguments,
// Calls and FactoryArguments hold raw configuration values until the service
// is compiled, after which every reference inside them is resolved.
type ServiceDef struct {
	// Class is the type the container instantiates.
	Class string `json:"class,omitempty" yaml:"class,omitempty"`

	// Arguments are the constructor arguments. A nil slice means the key was absent.
	Arguments []any `json:"arguments" yaml:"arguments,omitempty"`

	// Calls are method calls applied after construction, in order.
	Calls []MethodCall `json:"calls,omitempty" yaml:"calls,omitempty" validate:"dive"`

	// Tags lists the tags this service is published under.
	Tags []TagRef `json:"tags,omitempty" yaml:"tags,omitempty" validate:"dive"`

	// Abstract marks a template that is only used through Extends.
	Abstract bool `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// AliasOf makes this name an alias of another service ("@target").
	AliasOf string `json:"aliasOf,omitempty" yaml:"aliasOf,omitempty" validate:"omitempty,startswith=@"`

	// Extends names the parent definition to inherit from ("@parent").
	Extends string `json:"extends,omitempty" yaml:"extends,omitempty" validate:"omitempty,startswith=@"`

	// FactoryClass is the class whose static FactoryMethod builds the service.
	FactoryClass string `json:"factoryClass,omitempty" yaml:"factoryClass,omitempty"`

	// FactoryService is the service whose FactoryMethod builds the service.
	FactoryService string `json:"factoryService,omitempty" yaml:"factoryService,omitempty"`

	// FactoryMethod is the method invoked on the factory.
	FactoryMethod string `json:"factoryMethod,omitempty" yaml:"factoryMethod,omitempty"`

	// FactoryArguments are passed to FactoryMethod.
	FactoryArguments []any `json:"factoryArguments" yaml:"factoryArguments,omitempty"`

	// Override allows this definition to replace an existing one.
	Override bool `json:"override,omitempty" yaml:"override,omitempty"`
}

// MethodCall is a post-construction method invocation.
type MethodCall struct {
	Method    string `json:"method" yaml:"method" validate:"required"`
	Arguments []any  `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// TagRef publishes a service under a tag, optionally with an alias used as
// the key when the tag collection is injected as a map.
type TagRef struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// TagEntry is one member of a compiled tag collection.
type TagEntry struct {
	Service string `json:"service" yaml:"service"`
	Alias   string `json:"alias" yaml:"alias"`
}

// IsAlias reports whether the definition only aliases another service.
func (d ServiceDef) IsAlias() bool {
	return d.AliasOf != ""
}

// HasFactory reports whether any factory field is set.
func (d ServiceDef) HasFactory() bool {
	return d.FactoryClass != "" || d.FactoryService != "" || d.FactoryMethod != ""
}

// Clone returns a deep copy of the definition.
func (d ServiceDef) Clone() ServiceDef {
	c := d
	c.Arguments = cloneSlice(d.Arguments)
	c.FactoryArguments = cloneSlice(d.FactoryArguments)
	if d.Calls != nil {
		c.Calls = make([]MethodCall, len(d.Calls))
		for i, call := range d.Calls {
			c.Calls[i] = MethodCall{Method: call.Method, Arguments: cloneSlice(call.Arguments)}
		}
	}
	if d.Tags != nil {
		c.Tags = append([]TagRef(nil), d.Tags...)
	}
	return c
}

func cloneSlice(s []any) []any {
	if s == nil {
		return nil
	}
	return CloneValue(s).([]any)
}
