package loader

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// CUELoader loads .cue files. The file is evaluated and must be concrete;
// definitions and hidden fields are not part of the resulting document.
type CUELoader struct {
	mu  sync.Mutex
	ctx *cue.Context
}

// NewCUELoader creates a CUE loader.
func NewCUELoader() *CUELoader {
	return &CUELoader{ctx: cuecontext.New()}
}

// Name returns "cue".
func (l *CUELoader) Name() string { return "cue" }

// Supports reports whether path has a CUE extension.
func (l *CUELoader) Supports(path string) bool {
	return hasExt(path, ".cue")
}

// LoadFile reads, evaluates and exports a CUE document.
func (l *CUELoader) LoadFile(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	// A cue.Context is not safe for concurrent use.
	l.mu.Lock()
	defer l.mu.Unlock()

	val := l.ctx.CompileBytes(data, cue.Filename(path))
	if err := val.Err(); err != nil {
		return nil, parseError(path, convertCUEErrors(err))
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, parseError(path, convertCUEErrors(err))
	}

	out, err := val.MarshalJSON()
	if err != nil {
		return nil, parseError(path, convertCUEErrors(err))
	}
	v, err := decodeJSON(out)
	if err != nil {
		return nil, parseError(path, err)
	}
	return toDocument(path, v)
}

// convertCUEErrors flattens a CUE error list into one error with positions.
func convertCUEErrors(err error) error {
	var msgs []string
	for _, e := range errors.Errors(err) {
		msg := strings.TrimSpace(errors.Details(e, nil))
		if pos := errors.Positions(e); len(pos) > 0 {
			msg = fmt.Sprintf("%d:%d: %s", pos[0].Line(), pos[0].Column(), msg)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return err
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
