// Package engine provides the core types, interfaces and errors shared by the
// Syringe configuration compiler.
//
// # Overview
//
// Syringe compiles a set of declarative configuration files into a single
// self-consistent container description. Compilation runs in four phases:
//
//  1. Load - Walk imports and inherit chains into an ordered file list (graph)
//  2. Merge - Fold the files into one weighted configuration (aggregate)
//  3. Resolve - Substitute parameter, environment and constant tokens (resolver)
//  4. Build - Expand inheritance, aliases, tags and extensions (compiler)
//
// # Core Domain Types
//
//   - ServiceDef: A declarative recipe for one service
//   - MethodCall: A post-construction method invocation
//   - TagRef: A tag declaration on a service
//   - TagEntry: A member of a compiled tag collection
//   - Ordered: An insertion-ordered map used where merge order matters
//
// # Errors
//
// Every failure is an *Error classified by Kind:
//
//   - KindConfig: The configuration content is invalid
//   - KindLoader: A file could not be found, read or parsed
//   - KindRecursion: A bounded walk exceeded its depth limit
//
// Errors carry a breadcrumb Path that callers extend with Wrap as the error
// travels outwards, so a failure deep inside a parameter chain reads as
//
//	[config] service "mailer" > arguments[0] > parameter "dsn": referenced parameter "db.host" does not exist
//
// Use errors.Is with ErrConfig, ErrLoader or ErrRecursion, or the
// IsConfigError family of predicates, to branch on the kind.
package engine
