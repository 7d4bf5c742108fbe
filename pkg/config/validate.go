package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/syringe/pkg/engine"
)

var validate = validator.New()

// Accepted top-level keys of a configuration file.
var acceptedKeys = map[string]struct{}{
	"imports":    {},
	"parameters": {},
	"services":   {},
	"inherit":    {},
	"extensions": {},
}

// Accepted keys of a service definition.
var acceptedServiceKeys = map[string]struct{}{
	"class":            {},
	"arguments":        {},
	"extends":          {},
	"factoryClass":     {},
	"factoryMethod":    {},
	"factoryService":   {},
	"factoryArguments": {},
	"aliasOf":          {},
	"abstract":         {},
	"calls":            {},
	"tags":             {},
	"override":         {},
}

// ValidateService checks a definition as written in a file. Aliases, child
// definitions and abstract templates are exempt from the producer rules,
// since their producer is only known once inheritance is expanded.
func ValidateService(name string, def engine.ServiceDef) error {
	if err := validate.Struct(def); err != nil {
		return engine.Wrapf(convertValidationErrors(err), "service %q", name)
	}
	if def.IsAlias() || def.Extends != "" || def.Abstract {
		return nil
	}
	return CheckProducer(name, def)
}

// CheckProducer verifies that a concrete definition declares exactly one way
// to build the service: a class, or a factoryMethod with exactly one of
// factoryClass and factoryService. A factory definition may still carry a
// class naming the type it produces.
func CheckProducer(name string, def engine.ServiceDef) error {
	if def.HasFactory() {
		if def.FactoryMethod == "" {
			which := "factoryClass"
			if def.FactoryService != "" {
				which = "factoryService"
			}
			return engine.NewConfigError("service %q uses a %s but does not define a factoryMethod", name, which).
				WithCode(engine.CodeInvalidFactory)
		}
		if (def.FactoryClass != "") == (def.FactoryService != "") {
			return engine.NewConfigError("the service definition for %q should declare exactly one of factoryClass or factoryService", name).
				WithCode(engine.CodeInvalidFactory)
		}
		return nil
	}
	if def.Class == "" {
		return engine.NewConfigError("the service definition for %q does not have a class", name).
			WithCode(engine.CodeMissingClass)
	}
	return nil
}

// convertValidationErrors turns validator errors into a config error.
func convertValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return engine.NewConfigError("validation failed").WithCause(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "startswith":
			msgs = append(msgs, fmt.Sprintf("%s must reference a service with the %q sigil", lowerFirst(fe.Field()), fe.Param()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.TrimPrefix(fe.Namespace(), "ServiceDef.")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag()))
		}
	}
	return engine.NewConfigError("%s", strings.Join(msgs, "; ")).WithCode(engine.CodeInvalidShape)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
