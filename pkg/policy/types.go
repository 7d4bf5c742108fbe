package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that make the configuration unusable.
	SeverityError Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Policy is a Rego module whose deny rule reports violations in a compiled
// configuration.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego module. It must define a deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not set one.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from. Built-in policies have none.
	Source string `json:"source,omitempty"`
}

// Violation is a single finding reported by a policy.
type Violation struct {
	// Policy is the name of the policy that reported the violation.
	Policy string `json:"policy"`

	// Service is the service the violation is about, if any.
	Service string `json:"service,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation has error severity.
	Allowed bool `json:"allowed"`

	// Violations lists every violation, sorted by policy, service and message.
	Violations []Violation `json:"violations"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of the policies that ran.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation finished.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Count returns the number of violations with the given severity.
func (r *Result) Count(sev Severity) int {
	n := 0
	for i := range r.Violations {
		if r.Violations[i].Severity == sev {
			n++
		}
	}
	return n
}

// Reference is one service or tag reference found in a compiled service.
// It is part of the input every policy receives.
type Reference struct {
	// Service is the service holding the reference.
	Service string `json:"service"`

	// Kind is "service" or "tag".
	Kind string `json:"kind"`

	// Target is the referenced name as written.
	Target string `json:"target"`

	// Resolved is Target with aliases followed. It equals Target for tags.
	Resolved string `json:"resolved"`

	// Location is where the reference sits: arguments, factoryArguments,
	// factoryService or calls.<method>.
	Location string `json:"location"`
}
