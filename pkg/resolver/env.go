package resolver

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/openfroyo/syringe/pkg/engine"
)

// OSEnvironment reads the process environment.
type OSEnvironment struct{}

// LookupEnv implements engine.Environment.
func (OSEnvironment) LookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapEnvironment is a fixed set of variables.
type MapEnvironment map[string]string

// LookupEnv implements engine.Environment.
func (m MapEnvironment) LookupEnv(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// LayeredEnvironment consults each layer in order and returns the first hit.
type LayeredEnvironment []engine.Environment

// LookupEnv implements engine.Environment.
func (l LayeredEnvironment) LookupEnv(name string) (string, bool) {
	for _, env := range l {
		if v, ok := env.LookupEnv(name); ok {
			return v, true
		}
	}
	return "", false
}

// LoadDotenv reads variables from .env files. Later files override earlier
// ones. The process environment is not modified.
func LoadDotenv(files ...string) (MapEnvironment, error) {
	env := MapEnvironment{}
	for _, file := range files {
		vars, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	return env, nil
}

// MapConstants is a fixed set of host constants.
type MapConstants map[string]any

// LookupConstant implements engine.Constants.
func (m MapConstants) LookupConstant(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}
