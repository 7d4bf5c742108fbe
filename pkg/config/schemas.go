package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/openfroyo/syringe/pkg/engine"
)

// rootDefinition is the definition a schema is validated against when it
// declares one. Schemas without it are unified as a whole.
const rootDefinition = "#Root"

// SchemaRegistry manages CUE schemas for strict document validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	_ = sr.RegisterSchema(SchemaFile, builtinFileSchema)
	_ = sr.RegisterSchema(SchemaService, builtinServiceSchema)
}

// Built-in schema names.
const (
	SchemaFile    = "file"
	SchemaService = "service"
)

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	sr.schemas[name] = val
	return nil
}

// GetSchema returns a registered schema.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a registered schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data any) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	// The cue.Context is shared with RegisterSchema and is not safe for
	// concurrent use.
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if root := schema.LookupPath(cue.ParsePath(rootDefinition)); root.Exists() {
		schema = root
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateDocument checks a raw configuration document against the file schema.
func (sr *SchemaRegistry) ValidateDocument(ctx context.Context, filename string, doc map[string]any) error {
	if err := sr.ValidateAgainstSchema(ctx, SchemaFile, doc); err != nil {
		return engine.NewConfigError("document does not match the configuration schema").
			WithCode(engine.CodeSchemaViolation).
			WithFile(filename).
			WithCause(err)
	}
	return nil
}

// ListSchemas returns the names of all registered schemas.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const serviceDefinitions = `
#Call: {
	method:     string & !=""
	arguments?: [...]
}

#Service: {
	class?:            string
	arguments?:        [...]
	extends?:          =~"^@"
	factoryClass?:     string
	factoryMethod?:    string
	factoryService?:   string
	factoryArguments?: [...]
	aliasOf?:          =~"^@"
	abstract?:         bool
	calls?:            [...#Call]
	tags?:             [...string] | {[string]: string | null}
	override?:         bool
}
`

const builtinServiceSchema = serviceDefinitions + `
#Root: #Service
`

const builtinFileSchema = serviceDefinitions + `
#Root: {
	imports?:    [...string] | string
	inherit?:    string
	parameters?: {...}
	services?:   {[string]: #Service}
	extensions?: {[string]: [...#Call]}
}
`
