package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a compilation failure.
type ErrorKind string

const (
	// KindConfig indicates invalid configuration content.
	// Examples: unknown keys, missing references, circular parameters.
	KindConfig ErrorKind = "config"

	// KindLoader indicates a file that could not be found, read or parsed.
	KindLoader ErrorKind = "loader"

	// KindRecursion indicates that a bounded walk exceeded its depth limit.
	KindRecursion ErrorKind = "recursion"
)

// Error represents a classified compilation error with context.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Path is the breadcrumb from the outermost construct to the failing one,
	// for example service "mailer" > arguments[1].
	Path []string `json:"path,omitempty"`

	// File is the configuration file being processed, if known.
	File string `json:"file,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Sentinels for errors.Is checks by kind.
var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrLoader    = &Error{Kind: KindLoader}
	ErrRecursion = &Error{Kind: KindRecursion}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Kind)
	if len(e.Path) > 0 {
		b.WriteString(strings.Join(e.Path, " > "))
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.File != "" {
		fmt.Fprintf(&b, " (file=%s)", e.File)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. A target without a
// code matches every error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// NewConfigError creates a new configuration error.
func NewConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// NewLoaderError creates a new loader error.
func NewLoaderError(file, message string, err error) *Error {
	return &Error{Kind: KindLoader, Message: message, File: file, Err: err}
}

// NewRecursionError creates a new recursion limit error.
func NewRecursionError(format string, args ...any) *Error {
	return &Error{Kind: KindRecursion, Code: CodeRecursionLimit, Message: fmt.Sprintf(format, args...)}
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithFile adds file context to an error.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Wrap prefixes the breadcrumb of err with segment. Errors that are not
// classified become config errors. Wrap returns nil for a nil err.
func Wrap(err error, segment string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindConfig, Message: err.Error(), Path: []string{segment}}
	}
	c := *e
	c.Path = append([]string{segment}, e.Path...)
	return &c
}

// Wrapf is Wrap with a formatted segment.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsConfigError returns true if the error is a configuration error.
func IsConfigError(err error) bool {
	return kindOf(err) == KindConfig
}

// IsLoaderError returns true if the error is a loader error.
func IsLoaderError(err error) bool {
	return kindOf(err) == KindLoader
}

// IsRecursionError returns true if the error is a recursion limit error.
func IsRecursionError(err error) bool {
	return kindOf(err) == KindRecursion
}

// KindOf returns the classification of err, or "" if it is not classified.
func KindOf(err error) ErrorKind {
	return kindOf(err)
}

// CodeOf returns the error code of err, or "" if it carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Common error codes.
const (
	CodeInvalidKey        = "INVALID_KEY"
	CodeInvalidShape      = "INVALID_SHAPE"
	CodeMissingClass      = "MISSING_CLASS"
	CodeInvalidFactory    = "INVALID_FACTORY"
	CodeDuplicateService  = "DUPLICATE_SERVICE"
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeMissingService    = "MISSING_SERVICE"
	CodeMissingEnv        = "MISSING_ENV"
	CodeMissingConstant   = "MISSING_CONSTANT"
	CodeCircularReference = "CIRCULAR_REFERENCE"
	CodeUnevenDelimiters  = "UNEVEN_DELIMITERS"
	CodeNotInterpolable   = "NOT_INTERPOLABLE"
	CodeDanglingAlias     = "DANGLING_ALIAS"
	CodeRecursionLimit    = "RECURSION_LIMIT"
	CodeFileNotFound      = "FILE_NOT_FOUND"
	CodeParseFailed       = "PARSE_FAILED"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeSchemaViolation   = "SCHEMA_VIOLATION"
	CodeInvalidRequest    = "INVALID_REQUEST"
)
