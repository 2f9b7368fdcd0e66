// Package secrets resolves the secret values a workflow may reference
// through the `secrets` object, e.g. secrets.CODECOV_TOKEN.
package secrets

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix marks process environment variables that should be exposed as
// secrets. GRIDCI_SECRET_CODECOV_TOKEN becomes secrets.CODECOV_TOKEN.
const EnvPrefix = "GRIDCI_SECRET_"

// Store holds resolved secrets. Values never appear in logs; callers only
// read them to hand to handlers.
type Store struct {
	values map[string]string
}

// Resolve builds a store from the process environment and, if filePath is
// non-empty, a YAML secrets file of flat string pairs. File entries override
// environment entries of the same name.
func Resolve(filePath string) (*Store, error) {
	values := make(map[string]string)

	for _, entry := range os.Environ() {
		pair := strings.SplitN(entry, "=", 2)
		if len(pair) != 2 {
			continue
		}
		if name, ok := strings.CutPrefix(pair[0], EnvPrefix); ok && name != "" {
			values[name] = pair[1]
		}
	}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read secrets file: %w", err)
		}
		fileValues := make(map[string]string)
		if err := yaml.Unmarshal(data, &fileValues); err != nil {
			return nil, fmt.Errorf("failed to parse secrets file %s: %w", filePath, err)
		}
		for name, value := range fileValues {
			values[name] = value
		}
	}

	return &Store{values: values}, nil
}

// Get returns the named secret and whether it exists.
func (s *Store) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Len reports how many secrets are loaded. Used for logging without
// exposing names or values.
func (s *Store) Len() int {
	return len(s.values)
}

// All returns a copy of the secret map for building the evaluation context.
func (s *Store) All() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
