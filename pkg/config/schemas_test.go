package config

import (
	"context"
	"testing"

	"github.com/openfroyo/syringe/pkg/engine"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#Root: {
	field1: string
	field2: int
}
`
	if err := sr.RegisterSchema("custom", customSchema); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}
	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	ctx := context.Background()
	if err := sr.ValidateAgainstSchema(ctx, "custom", map[string]any{"field1": "a", "field2": 1}); err != nil {
		t.Errorf("expected valid data, got %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "custom", map[string]any{"field1": "a"}); err == nil {
		t.Error("expected missing field2 to fail")
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	for _, name := range []string{SchemaFile, SchemaService} {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}
			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}

	if got := sr.ListSchemas(); len(got) != 2 {
		t.Errorf("expected 2 schemas, got %v", got)
	}
}

func TestSchemaRegistry_ValidateDocument(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		doc     map[string]any
		wantErr bool
	}{
		{
			name: "valid document",
			doc: map[string]any{
				"imports":    []any{"lib.yml"},
				"parameters": map[string]any{"a": nil, "b": []any{1, 2}},
				"services": map[string]any{
					"svc": map[string]any{
						"class":     "Foo",
						"arguments": []any{"@bar", 1},
						"calls":     []any{map[string]any{"method": "init"}},
						"tags":      map[string]any{"t": "alias", "u": nil},
					},
					"alias": map[string]any{"aliasOf": "@svc"},
				},
				"extensions": map[string]any{
					"svc": []any{map[string]any{"method": "extra", "arguments": []any{}}},
				},
			},
		},
		{
			name:    "unknown top-level key",
			doc:     map[string]any{"service": map[string]any{}},
			wantErr: true,
		},
		{
			name: "unknown service key",
			doc: map[string]any{"services": map[string]any{
				"svc": map[string]any{"klass": "Foo"},
			}},
			wantErr: true,
		},
		{
			name: "abstract must be boolean",
			doc: map[string]any{"services": map[string]any{
				"svc": map[string]any{"abstract": "yes"},
			}},
			wantErr: true,
		},
		{
			name: "extends needs sigil",
			doc: map[string]any{"services": map[string]any{
				"svc": map[string]any{"extends": "base"},
			}},
			wantErr: true,
		},
		{
			name: "call without method",
			doc: map[string]any{"extensions": map[string]any{
				"svc": []any{map[string]any{"arguments": []any{}}},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateDocument(ctx, "app.yml", tt.doc)
			if tt.wantErr {
				if engine.CodeOf(err) != engine.CodeSchemaViolation {
					t.Errorf("expected schema violation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
