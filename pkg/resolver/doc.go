// Package resolver substitutes the tokens found in merged configuration
// values.
//
// Four kinds of references are recognised inside strings:
//
//	%name%   parameter
//	$NAME$   environment variable
//	^NAME^   host constant
//	@name    service (whole string only)
//	#name    tag (whole string only)
//
// A doubled delimiter stands for the literal character, so "100%%" is
// "100%". Service and tag references are not looked up here; they become
// deferred markers that the compiler checks once every service is known.
package resolver
