// Package token defines the sigils of the configuration language and the
// scanner that splits strings into literal text and delimited references.
//
// Service and tag references use a leading sigil:
//
//	@mailer      service reference
//	#listeners   tag reference
//
// Parameters, constants and environment variables use paired delimiters,
// and a doubled delimiter stands for one literal character:
//
//	%db.host%    parameter
//	^PHP_EOL^    constant
//	$HOME$       environment variable
//	50%%         the literal text "50%"
//
// Once resolved, service and tag references become markers: strings that
// start with a NUL byte followed by the sigil. Markers are never
// re-resolved and cannot be embedded in larger strings.
package token
