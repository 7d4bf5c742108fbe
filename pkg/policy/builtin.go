package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		unresolvedServicePolicy(),
		unknownTagPolicy(),
		selfReferencePolicy(),
		serviceNamingPolicy(),
	}
}

// unresolvedServicePolicy reports references to services that are not defined.
func unresolvedServicePolicy() Policy {
	return Policy{
		Name:        "unresolved-service",
		Description: "Service references must name a defined service or alias",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"references"},
		Rego: `package syringe.policies.references

import rego.v1

deny contains violation if {
	some ref in input.references
	ref.kind == "service"
	not input.services[ref.resolved]
	violation := {
		"message": sprintf("service '%s' references undefined service '%s' in %s", [ref.service, ref.target, ref.location]),
		"service": ref.service,
	}
}`,
	}
}

// unknownTagPolicy reports tag references that no service is published under.
func unknownTagPolicy() Policy {
	return Policy{
		Name:        "unknown-tag",
		Description: "Tag references should name a tag with at least one service",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"references", "tags"},
		Rego: `package syringe.policies.tags

import rego.v1

deny contains violation if {
	some ref in input.references
	ref.kind == "tag"
	count(object.get(input.tags, ref.target, [])) == 0
	violation := {
		"message": sprintf("service '%s' injects tag '%s', which has no services", [ref.service, ref.target]),
		"service": ref.service,
	}
}`,
	}
}

// selfReferencePolicy reports services that need themselves to be built.
func selfReferencePolicy() Policy {
	return Policy{
		Name:        "self-reference",
		Description: "A service cannot be constructed from itself",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"references"},
		Rego: `package syringe.policies.cycles

import rego.v1

deny contains violation if {
	some ref in input.references
	ref.kind == "service"
	ref.resolved == ref.service
	not startswith(ref.location, "calls.")
	violation := {
		"message": sprintf("service '%s' references itself in %s", [ref.service, ref.location]),
		"service": ref.service,
	}
}`,
	}
}

// serviceNamingPolicy flags service names that cannot be referenced cleanly.
func serviceNamingPolicy() Policy {
	return Policy{
		Name:        "service-naming",
		Description: "Service names should not contain whitespace or start with a sigil",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming"},
		Rego: `package syringe.policies.naming

import rego.v1

deny contains violation if {
	some name, _ in input.services
	regex.match("\\s", name)
	violation := {
		"message": sprintf("service name '%s' contains whitespace", [name]),
		"service": name,
	}
}

deny contains violation if {
	some name, _ in input.services
	regex.match("^[@#%$]", name)
	violation := {
		"message": sprintf("service name '%s' starts with a reference sigil", [name]),
		"service": name,
	}
}`,
	}
}
