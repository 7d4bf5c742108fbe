// Package config models a single configuration file.
//
// A FileUnit wraps one decoded document together with the namespace it was
// loaded under. It validates the document's keys and service definitions and
// exposes every parameter, service and extension as a weighted Entry whose
// name and references have been qualified with the namespace.
//
// # Namespaces
//
// A file loaded under namespace "lib" has its unqualified keys prefixed:
//
//	parameters:
//	  greeting: hola          ->  lib::greeting (weight 1)
//	  other::greeting: hi     ->  other::greeting (weight 5)
//	services:
//	  mailer:
//	    arguments: ["%greeting%", "@transport"]
//	                          ->  ["%lib::greeting%", "@lib::transport"]
//
// Keys in files without a namespace carry weight 10, so the application's
// own configuration always overrides its libraries.
//
// # Strict Validation
//
// SchemaRegistry validates raw documents against built-in CUE schemas. The
// "file" schema closes the set of top-level and service keys and checks the
// type of every field before the document is interpreted.
package config
