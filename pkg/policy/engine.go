package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/compiler"
)

// Engine compiles Rego policies and evaluates them against compiled
// configurations.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy is a policy with its deny query prepared for reuse.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(ctx context.Context, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range BuiltinPolicies() {
		if err := e.AddPolicy(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}

	e.logger.Debug().Int("count", len(e.policies)).Msg("Built-in policies loaded")
	return e, nil
}

// AddPolicy compiles a policy and stores it, replacing any policy with the
// same name.
func (e *Engine) AddPolicy(ctx context.Context, p Policy) error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.Severity == "" {
		p.Severity = SeverityWarning
	}
	if !p.Severity.Valid() {
		return fmt.Errorf("policy %s has invalid severity %q", p.Name, p.Severity)
	}

	module, err := ast.ParseModule(p.Name+".rego", p.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy %s: %w", p.Name, err)
	}
	query := module.Package.Path.String() + ".deny"

	prepared, err := rego.New(
		rego.ParsedModule(module),
		rego.Query(query),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policy %s: %w", p.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.Name] = &compiledPolicy{
		policy:   &p,
		query:    prepared,
		compiled: time.Now(),
	}

	e.logger.Debug().Str("policy", p.Name).Str("query", query).Msg("Policy compiled")
	return nil
}

// LoadPolicies loads and compiles policy files and directories.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if err := e.AddPolicy(ctx, policies[i]); err != nil {
			return err
		}
	}

	e.logger.Info().Int("count", len(policies)).Msg("Policies loaded")
	return nil
}

// Evaluate runs every enabled policy against a compiled configuration.
// A policy that fails to evaluate is reported in Result.Warnings and does
// not stop the others.
func (e *Engine) Evaluate(ctx context.Context, cfg *compiler.CompiledConfig) (*Result, error) {
	start := time.Now()

	input, err := NewInput(cfg).value()
	if err != nil {
		return nil, fmt.Errorf("failed to build policy input: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{Allowed: true, Violations: []Violation{}}
	for _, name := range e.sortedNames() {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, name)

		violations, err := evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", name).Msg("Policy evaluation failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("policy %s evaluation failed: %v", name, err))
			continue
		}
		result.Violations = append(result.Violations, violations...)
	}

	sort.SliceStable(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.Policy != b.Policy {
			return a.Policy < b.Policy
		}
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		return a.Message < b.Message
	})
	result.Allowed = result.Count(SeverityError) == 0
	result.EvaluatedAt = time.Now()
	result.Duration = time.Since(start)

	e.logger.Debug().
		Int("violations", len(result.Violations)).
		Bool("allowed", result.Allowed).
		Dur("duration", result.Duration).
		Msg("Policy evaluation completed")

	return result, nil
}

// evaluatePolicy runs one prepared deny query.
func evaluatePolicy(ctx context.Context, cp *compiledPolicy, input any) ([]Violation, error) {
	rs, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, r := range rs {
		for _, expr := range r.Expressions {
			set, ok := expr.Value.([]any)
			if !ok {
				return nil, fmt.Errorf("deny must be a set, got %T", expr.Value)
			}
			for _, d := range set {
				violations = append(violations, newViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

// newViolation turns one deny entry into a violation. Entries are either a
// message string or an object with message, severity and service fields.
func newViolation(p *Policy, entry any) Violation {
	v := Violation{Policy: p.Name, Severity: p.Severity}

	switch val := entry.(type) {
	case string:
		v.Message = val
	case map[string]any:
		if msg, ok := val["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := val["severity"].(string); ok && Severity(sev).Valid() {
			v.Severity = Severity(sev)
		}
		if svc, ok := val["service"].(string); ok {
			v.Service = svc
		}
	default:
		v.Message = fmt.Sprintf("%v", entry)
	}
	return v
}

func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, ok := e.policies[name]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	p := *cp.policy
	return &p, nil
}

// ListPolicies returns every loaded policy sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}
	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	e.logger.Debug().Str("policy", name).Bool("enabled", enabled).Msg("Policy toggled")
	return nil
}
