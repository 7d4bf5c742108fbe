package resolver

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/token"
)

func newTestResolver(params map[string]any, opts ...Option) *Resolver {
	defaults := []Option{
		WithEnvironment(MapEnvironment{
			"HOME":  "/home/app",
			"EMPTY": "",
			"PCT":   "50%",
			"CARET": "a^b",
		}),
		WithConstants(MapConstants{
			"PHP_EOL": "\n",
			"MAX":     10,
			"LIST":    []any{1, 2},
		}),
	}
	return New(params, append(defaults, opts...)...)
}

func TestResolve_Escapes(t *testing.T) {
	r := newTestResolver(map[string]any{
		"my_key_1": "my_value_1",
		"my_key_2": "my_value_2",
	})

	tests := []struct {
		input string
		want  string
	}{
		{"%my_key_1%", "my_value_1"},
		{"%my_key_1%50%%", "my_value_150%"},
		{"%%%my_key_1%", "%my_value_1"},
		{"%my_key_1%%%%my_key_2%", "my_value_1%my_value_2"},
		{"100%%", "100%"},
		{"$$5", "$5"},
		{"^^_^^", "^_^"},
		{"plain text", "plain text"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.Resolve(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolve_FullSpanPreservesType(t *testing.T) {
	r := newTestResolver(map[string]any{
		"bar":  "chicken",
		"obj":  map[string]any{"foo": "%bar%"},
		"null": nil,
		"num":  42,
		"list": []any{1, "%bar%"},
		"flag": true,
	})

	tests := []struct {
		input string
		want  any
	}{
		{"%obj%", map[string]any{"foo": "chicken"}},
		{"%null%", nil},
		{"%num%", 42},
		{"%list%", []any{1, "chicken"}},
		{"%flag%", true},
		{"port %num%", "port 42"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.Resolve(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_PartialSpanRejectsComposites(t *testing.T) {
	r := newTestResolver(map[string]any{
		"obj":  map[string]any{"foo": "bar"},
		"null": nil,
		"flag": true,
	})

	for _, input := range []string{"x%obj%", "x%null%", "%flag%!", "a^LIST^"} {
		t.Run(input, func(t *testing.T) {
			_, err := r.Resolve(input)
			if engine.CodeOf(err) != engine.CodeNotInterpolable {
				t.Errorf("expected %s, got %v", engine.CodeNotInterpolable, err)
			}
		})
	}
}

func TestResolve_PartialSpanRejectsReferences(t *testing.T) {
	r := newTestResolver(map[string]any{
		"svc":    "@mailer",
		"tagged": "#handlers",
		"inner":  "x%svc%",
	})

	tests := []struct {
		input string
		want  string
	}{
		{"x%svc%", "a service reference"},
		{"%tagged%/all", "a tag reference"},
		{"%inner%", "a service reference"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := r.Resolve(tt.input)
			if engine.CodeOf(err) != engine.CodeNotInterpolable {
				t.Fatalf("expected %s, got %v", engine.CodeNotInterpolable, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestResolve_Nested(t *testing.T) {
	r := newTestResolver(map[string]any{"name": "world", "pi": 1.5})

	input := map[string]any{
		"greeting": "hello %name%",
		"items":    []any{"%pi%", "v%pi%", map[string]any{"deep": "%name%"}},
		"count":    3,
	}
	want := map[string]any{
		"greeting": "hello world",
		"items":    []any{1.5, "v1.5", map[string]any{"deep": "world"}},
		"count":    3,
	}

	got, err := r.Resolve(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_EnvAndConstants(t *testing.T) {
	r := newTestResolver(map[string]any{
		"dir": "$HOME$/data",
		"eol": "^PHP_EOL^",
	})

	tests := []struct {
		input string
		want  any
	}{
		{"$HOME$/cache", "/home/app/cache"},
		{"$HOME$", "/home/app"},
		{"%dir%/x", "/home/app/data/x"},
		{"%dir%", "/home/app/data"},
		{"%eol%", "\n"},
		{"^MAX^", 10},
		{"max=^MAX^", "max=10"},
		{"$PCT$ off", "50% off"},
		{"$CARET$!", "a^b!"},
		{"$EMPTY$", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.Resolve(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if diff := cmp.Diff(map[string]string{"HOME": "/home/app", "PCT": "50%", "CARET": "a^b", "EMPTY": ""}, r.ObservedEnv()); diff != "" {
		t.Errorf("observed env mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"PHP_EOL": "\n", "MAX": 10}, r.ObservedConstants()); diff != "" {
		t.Errorf("observed constants mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_MissingReferences(t *testing.T) {
	r := newTestResolver(map[string]any{})

	tests := []struct {
		input string
		code  string
	}{
		{"%nope%", engine.CodeMissingParameter},
		{"a %nope% b", engine.CodeMissingParameter},
		{"$UNSET_VARIABLE$", engine.CodeMissingEnv},
		{"^NOPE^", engine.CodeMissingConstant},
		{"%oops", engine.CodeUnevenDelimiters},
		{"$HOME", engine.CodeUnevenDelimiters},
		{"^MAX", engine.CodeUnevenDelimiters},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := r.Resolve(tt.input)
			if !engine.IsConfigError(err) {
				t.Fatalf("expected config error, got %v", err)
			}
			if got := engine.CodeOf(err); got != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, got)
			}
		})
	}
}

func TestResolve_AllowUnsetEnv(t *testing.T) {
	r := newTestResolver(map[string]any{}, WithAllowUnsetEnv(true))

	got, err := r.Resolve("[$UNSET_VARIABLE$]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[]" {
		t.Errorf("expected [], got %q", got)
	}
}

func TestResolve_Markers(t *testing.T) {
	r := newTestResolver(map[string]any{"svc": "@mailer"})

	tests := []struct {
		input string
		want  any
	}{
		{"@mailer", token.ServiceMarker("mailer")},
		{"@lib::mailer", token.ServiceMarker("lib::mailer")},
		{"#handlers", token.TagMarker("handlers")},
		{"%svc%", token.ServiceMarker("mailer")},
		{token.ServiceMarker("kept"), token.ServiceMarker("kept")},
		{"mail@example.com", "mail@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.Resolve(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolve_Cycles(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		input  string
		want   string
	}{
		{"self", map[string]any{"a": "%a%"}, "%a%", "a -> a"},
		{"value", map[string]any{"a": "%b%", "b": "%a%"}, "%a%", "a -> b -> a"},
		{"text", map[string]any{"a": "x%b%", "b": "y%a%"}, "%a%", "a -> b -> a"},
		{"embedded", map[string]any{"a": "x%b%", "b": "y%a%"}, "z%a%", "a -> b -> a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestResolver(tt.params).Resolve(tt.input)
			if engine.CodeOf(err) != engine.CodeCircularReference {
				t.Fatalf("expected circular reference, got %v", err)
			}
			if !strings.Contains(err.Error(), "circular reference: "+tt.want) {
				t.Errorf("expected cycle %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestResolve_DepthLimit(t *testing.T) {
	params := make(map[string]any)
	for i := 0; i < 150; i++ {
		params[fmt.Sprintf("p%d", i)] = fmt.Sprintf("%%p%d%%", i+1)
	}
	params["p150"] = "end"

	_, err := newTestResolver(params).Resolve("%p0%")
	if !errors.Is(err, engine.ErrRecursion) {
		t.Fatalf("expected recursion error, got %v", err)
	}

	got, err := newTestResolver(params, WithMaxDepth(200)).Resolve("%p0%")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "end" {
		t.Errorf("expected end, got %v", got)
	}
}

func TestResolveParameters(t *testing.T) {
	r := newTestResolver(map[string]any{
		"host": "localhost",
		"port": 5432,
		"dsn":  "postgres://%host%:%port%/app",
	})

	got, err := r.ResolveParameters()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{
		"host": "localhost",
		"port": 5432,
		"dsn":  "postgres://localhost:5432/app",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveParameters_Breadcrumb(t *testing.T) {
	r := newTestResolver(map[string]any{"a": "%b%", "b": "%missing%"})

	_, err := r.ResolveParameters()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `parameter "a" > parameter "b"`) {
		t.Errorf("expected breadcrumb in %q", err.Error())
	}
}

func TestResolveParameter_ReturnsCopies(t *testing.T) {
	r := newTestResolver(map[string]any{"obj": map[string]any{"k": "v"}})

	first, err := r.ResolveParameter("obj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.(map[string]any)["k"] = "changed"

	second, _ := r.ResolveParameter("obj")
	if got := second.(map[string]any)["k"]; got != "v" {
		t.Errorf("expected v, got %v", got)
	}
}

func TestResolveString(t *testing.T) {
	r := newTestResolver(map[string]any{"cls": "App\\Mailer", "n": 1})

	if got, err := r.ResolveString("%cls%"); err != nil || got != "App\\Mailer" {
		t.Errorf("expected App\\Mailer, got %q (%v)", got, err)
	}
	if _, err := r.ResolveString("%n%"); engine.CodeOf(err) != engine.CodeNotInterpolable {
		t.Errorf("expected %s, got %v", engine.CodeNotInterpolable, err)
	}
}
