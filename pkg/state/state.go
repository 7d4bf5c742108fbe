package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/openfroyo/syringe/pkg/engine"
)

// Policy decides how source files are compared.
type Policy string

const (
	// PolicyContentHash treats a file as changed when its content hash differs.
	PolicyContentHash Policy = "content-hash"

	// PolicyLegacy treats a file as changed only when both its modification
	// time and its content hash differ.
	PolicyLegacy Policy = "legacy"
)

// FileState is the recorded state of one source file.
type FileState struct {
	Path    string    `json:"path" yaml:"path"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	Hash    string    `json:"hash" yaml:"hash"`
}

// Snapshot is the validity state of a compiled configuration.
type Snapshot struct {
	Policy    Policy            `json:"policy,omitempty" yaml:"policy,omitempty"`
	Files     []FileState       `json:"files" yaml:"files"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Constants map[string]any    `json:"constants,omitempty" yaml:"constants,omitempty"`
}

// FileInspector reads the current state of a file.
type FileInspector interface {
	Inspect(path string) (FileState, error)
}

// OSInspector inspects files on the local filesystem.
type OSInspector struct{}

// Inspect implements FileInspector.
func (OSInspector) Inspect(path string) (FileState, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileState{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileState{}, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return FileState{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return FileState{
		Path:    path,
		ModTime: info.ModTime().UTC(),
		Hash:    hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Capture records the state of files and the observed environment and
// constants.
func Capture(inspector FileInspector, policy Policy, files []string, env map[string]string, constants map[string]any) (*Snapshot, error) {
	if inspector == nil {
		inspector = OSInspector{}
	}
	if policy == "" {
		policy = PolicyContentHash
	}

	s := &Snapshot{
		Policy:    policy,
		Files:     make([]FileState, 0, len(files)),
		Env:       make(map[string]string, len(env)),
		Constants: make(map[string]any, len(constants)),
	}
	for _, path := range files {
		fs, err := inspector.Inspect(path)
		if err != nil {
			return nil, engine.NewLoaderError(path, "failed to inspect source file", err).
				WithCode(engine.CodeFileNotFound)
		}
		s.Files = append(s.Files, fs)
	}
	for k, v := range env {
		s.Env[k] = v
	}
	for k, v := range constants {
		s.Constants[k] = engine.CloneValue(v)
	}
	return s, nil
}

// IsValid reports whether nothing recorded in s has changed.
func (s *Snapshot) IsValid(env engine.Environment, constants engine.Constants, inspector FileInspector) bool {
	ok, _ := s.Check(env, constants, inspector)
	return ok
}

// Check is IsValid with the reason for the first difference found.
func (s *Snapshot) Check(env engine.Environment, constants engine.Constants, inspector FileInspector) (bool, string) {
	if s == nil {
		return false, "no validity state recorded"
	}
	if inspector == nil {
		inspector = OSInspector{}
	}

	for _, name := range sortedKeys(s.Env) {
		current, ok := env.LookupEnv(name)
		// An unset variable resolved to "" at compile time.
		if !ok {
			current = ""
		}
		if current != s.Env[name] {
			return false, fmt.Sprintf("environment variable %s changed", name)
		}
	}

	for _, name := range sortedKeys(s.Constants) {
		if constants == nil {
			return false, fmt.Sprintf("constant %s is no longer defined", name)
		}
		current, ok := constants.LookupConstant(name)
		if !ok {
			return false, fmt.Sprintf("constant %s is no longer defined", name)
		}
		if !engine.EqualValues(engine.NormalizeValue(current), engine.NormalizeValue(s.Constants[name])) {
			return false, fmt.Sprintf("constant %s changed", name)
		}
	}

	for _, recorded := range s.Files {
		current, err := inspector.Inspect(recorded.Path)
		if err != nil {
			return false, fmt.Sprintf("file %s is unreadable: %v", recorded.Path, err)
		}
		if s.fileChanged(recorded, current) {
			return false, fmt.Sprintf("file %s changed", recorded.Path)
		}
	}
	return true, ""
}

func (s *Snapshot) fileChanged(recorded, current FileState) bool {
	hashChanged := recorded.Hash != current.Hash
	if s.Policy == PolicyLegacy {
		return hashChanged && !recorded.ModTime.Equal(current.ModTime)
	}
	return hashChanged
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
