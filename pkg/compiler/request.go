package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/openfroyo/syringe/pkg/engine"
)

// AppDirParameter is the parameter that receives Request.AppDir.
const AppDirParameter = "app.dir"

var (
	requestValidator = validator.New()
	canonicalJSON    = jsoniter.ConfigCompatibleWithStandardLibrary
)

// FileSpec names a root configuration file. A non-empty Namespace prefixes
// every name the file declares, and everything it imports or inherits.
type FileSpec struct {
	Namespace string `json:"namespace,omitempty" validate:"excludesall=%@#"`
	Path      string `json:"path" validate:"required"`
}

// ParseFileSpec parses "path" or "namespace=path".
func ParseFileSpec(s string) FileSpec {
	if ns, path, ok := strings.Cut(s, "="); ok {
		return FileSpec{Namespace: strings.TrimSpace(ns), Path: strings.TrimSpace(path)}
	}
	return FileSpec{Path: strings.TrimSpace(s)}
}

// Request holds everything one compilation depends on.
type Request struct {
	// AppDir is the application root. It is exposed as the app.dir parameter
	// unless Parameters already sets it.
	AppDir string `json:"appDir,omitempty"`

	// Files are the root files, compiled in order.
	Files []FileSpec `json:"files" validate:"required,min=1,dive"`

	// SearchPaths are consulted from last to first when resolving relative
	// file names.
	SearchPaths []string `json:"searchPaths,omitempty" validate:"dive,required"`

	// Parameters override parameters declared in files.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Validate checks the request's shape.
func (r Request) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		return engine.NewConfigError("invalid compile request").
			WithCode(engine.CodeInvalidRequest).
			WithCause(err)
	}
	return nil
}

// CacheKey returns the hex SHA-256 of the request's canonical JSON form.
// Map keys are sorted, so equal requests always share a key.
func (r Request) CacheKey() (string, error) {
	data, err := canonicalJSON.Marshal(r)
	if err != nil {
		return "", engine.NewConfigError("failed to encode compile request").
			WithCode(engine.CodeInvalidRequest).
			WithCause(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// parameters returns the extra parameters with app.dir filled in.
func (r Request) parameters() map[string]any {
	params := make(map[string]any, len(r.Parameters)+1)
	for k, v := range r.Parameters {
		params[k] = engine.NormalizeValue(v)
	}
	if _, ok := params[AppDirParameter]; !ok && r.AppDir != "" {
		params[AppDirParameter] = r.AppDir
	}
	return params
}
