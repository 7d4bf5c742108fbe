package aggregate

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/syringe/pkg/config"
	"github.com/openfroyo/syringe/pkg/engine"
)

func unit(t *testing.T, name string, doc map[string]any, namespace string) *config.FileUnit {
	t.Helper()
	f, err := config.NewFileUnit(name, doc, namespace)
	if err != nil {
		t.Fatalf("NewFileUnit(%s) failed: %v", name, err)
	}
	return f
}

func TestParameters_WeightedMerge(t *testing.T) {
	a := New()
	files := []*config.FileUnit{
		unit(t, "app.yml", map[string]any{"parameters": map[string]any{"greeting": "hello", "lib::level": "app"}}, ""),
		unit(t, "lib.yml", map[string]any{"parameters": map[string]any{"greeting": "hola", "level": "lib"}}, "lib"),
		unit(t, "other.yml", map[string]any{"parameters": map[string]any{"lib::level": "other"}}, "other"),
	}
	for _, f := range files {
		if err := a.AddFileConfig(f); err != nil {
			t.Fatalf("AddFileConfig failed: %v", err)
		}
	}

	want := map[string]any{
		"greeting":      "hello",
		"lib::greeting": "hola",
		"lib::level":    "app",
	}
	if diff := cmp.Diff(want, a.Parameters()); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestParameters_SameWeightLastWins(t *testing.T) {
	a := New()
	_ = a.AddFileConfig(unit(t, "a.yml", map[string]any{"parameters": map[string]any{"p": "first"}}, ""))
	_ = a.AddFileConfig(unit(t, "b.yml", map[string]any{"parameters": map[string]any{"p": "second"}}, ""))

	if got := a.Parameters()["p"]; got != "second" {
		t.Errorf("expected second, got %v", got)
	}
}

func TestParameters_RandomizedDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	weights := []int{config.WeightNamespaced, config.WeightExplicit, config.WeightRoot}

	entries := make([]config.Entry[any], 500)
	for i := range entries {
		entries[i] = config.Entry[any]{
			Name:   fmt.Sprintf("key%d", rng.Intn(40)),
			Weight: weights[rng.Intn(len(weights))],
			Value:  i,
		}
	}

	// Reference: the highest weight wins, ties go to the entry added last.
	want := make(map[string]any)
	best := make(map[string]int)
	for _, e := range entries {
		if w, ok := best[e.Name]; !ok || e.Weight >= w {
			best[e.Name] = e.Weight
			want[e.Name] = e.Value
		}
	}

	for run := 0; run < 5; run++ {
		a := New()
		a.parameters = append(a.parameters, entries...)
		if diff := cmp.Diff(want, a.Parameters()); diff != "" {
			t.Fatalf("run %d: merge mismatch (-want +got):\n%s", run, diff)
		}
	}
}

func TestServices_OverrideRule(t *testing.T) {
	lib := map[string]any{"services": map[string]any{"mailer": map[string]any{"class": "LibMailer"}}}

	tests := []struct {
		name    string
		app     map[string]any
		wantErr bool
		want    engine.ServiceDef
	}{
		{
			name:    "plain redefinition is rejected",
			app:     map[string]any{"services": map[string]any{"lib::mailer": map[string]any{"class": "AppMailer"}}},
			wantErr: true,
		},
		{
			name: "override replaces",
			app: map[string]any{"services": map[string]any{
				"lib::mailer": map[string]any{"class": "AppMailer", "override": true},
			}},
			want: engine.ServiceDef{Class: "AppMailer", Override: true},
		},
		{
			name: "alias replaces",
			app: map[string]any{"services": map[string]any{
				"lib::mailer": map[string]any{"aliasOf": "@app_mailer"},
			}},
			want: engine.ServiceDef{AliasOf: "@app_mailer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			_ = a.AddFileConfig(unit(t, "app.yml", tt.app, ""))
			_ = a.AddFileConfig(unit(t, "lib.yml", lib, "lib"))

			services, err := a.Services()
			if tt.wantErr {
				if engine.CodeOf(err) != engine.CodeDuplicateService {
					t.Fatalf("expected duplicate service error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _ := services.Get("lib::mailer")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("service mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtensions_Concatenate(t *testing.T) {
	a := New()
	_ = a.AddFileConfig(unit(t, "app.yml", map[string]any{"extensions": map[string]any{
		"lib::registry": []any{map[string]any{"method": "fromApp"}},
	}}, ""))
	_ = a.AddFileConfig(unit(t, "lib.yml", map[string]any{"extensions": map[string]any{
		"registry": []any{map[string]any{"method": "fromLib"}},
	}}, "lib"))
	_ = a.AddFileConfig(unit(t, "more.yml", map[string]any{"extensions": map[string]any{
		"lib::registry": []any{map[string]any{"method": "fromMore"}},
	}}, ""))

	got, _ := a.Extensions().Get("lib::registry")
	want := []engine.MethodCall{{Method: "fromLib"}, {Method: "fromApp"}, {Method: "fromMore"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}
}

func TestFiles(t *testing.T) {
	a := New()
	_ = a.AddFileConfig(unit(t, "a.yml", map[string]any{}, ""))
	_ = a.AddFileConfig(unit(t, "b.yml", map[string]any{}, "lib"))
	_ = a.AddFileConfig(unit(t, "a.yml", map[string]any{}, "other"))

	if diff := cmp.Diff([]string{"a.yml", "b.yml"}, a.Files()); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}
