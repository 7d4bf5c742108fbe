// Package policy checks compiled service configurations with Open Policy
// Agent (OPA) Rego policies.
//
// Compilation guarantees that a configuration is internally consistent:
// parameters resolve, inheritance is sound and every service has a way to be
// built. It does not know whether the services a definition references will
// exist at runtime. Policies fill that gap and enforce house rules on top.
//
// # Architecture
//
//  1. Engine - Compiles Rego policies and evaluates them
//  2. Loader - Loads policies from .rego and .json files and directories
//  3. Input - The document a policy evaluates
//
// # Usage
//
//	eng, err := policy.NewEngine(ctx, logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//
//	result, err := eng.Evaluate(ctx, compiled)
//	if err != nil {
//	    return err
//	}
//	for _, v := range result.Violations {
//	    fmt.Printf("%s [%s] %s\n", v.Severity, v.Policy, v.Message)
//	}
//
// # Input
//
// Policies see the compiled services, aliases, parameters and tags. Deferred
// service and tag references appear as "@name" and "#name" strings, and
// input.references lists each of them with the owning service, the target,
// the target with aliases followed and the location of the reference.
//
// # Writing Policies
//
// A policy defines a deny set. Entries are message strings or objects with
// message, service and severity fields:
//
//	# Mailers must be built through the mailer factory.
//	# severity: error
//	package custom.mailers
//
//	import rego.v1
//
//	deny contains violation if {
//	    some name, svc in input.services
//	    startswith(name, "mailer.")
//	    not svc.factoryService
//	    violation := {"message": sprintf("%s is not built by a factory", [name]), "service": name}
//	}
//
// # Built-in Policies
//
//  1. unresolved-service - References must name a defined service or alias
//  2. unknown-tag - Injected tags should have at least one service
//  3. self-reference - A service cannot be constructed from itself
//  4. service-naming - Names should not contain whitespace or start with a sigil
//
// # Severity Levels
//
//   - info: Informational findings
//   - warning: Findings that should be reviewed
//   - error: Findings that make the configuration unusable; Result.Allowed is false
package policy
