// Package conda_env provides a runner that updates a conda environment from
// a declarative YAML manifest. The manifest is parsed first so a malformed
// file fails the step before the package manager is ever invoked.
package conda_env

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Manifest mirrors the conda environment.yml layout. Dependencies are kept
// raw because entries mix plain specs with nested maps like {pip: [...]}.
type Manifest struct {
	Name         string   `yaml:"name"`
	Channels     []string `yaml:"channels"`
	Dependencies []any    `yaml:"dependencies"`
}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	ManifestPath string `grid:"manifest_path"`
	EnvName      string `grid:"env_name"`
	CondaExe     string `grid:"conda_exe"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output summarizes the updated environment.
type Output struct {
	Name            string `cty:"name"`
	DependencyCount int    `cty:"dependency_count"`
}

// OnRunCondaEnv is the handler for the 'conda_env' runner's on_run event.
func OnRunCondaEnv(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	manifest, err := ParseManifest(input.ManifestPath)
	if err != nil {
		return nil, err
	}

	envName := input.EnvName
	if envName == "" {
		envName = manifest.Name
	}
	if envName == "" {
		return nil, fmt.Errorf("environment name missing: set env_name or name the manifest environment")
	}

	logger.Info("Updating environment from manifest",
		"env", envName,
		"manifest", input.ManifestPath,
		"dependencies", len(manifest.Dependencies))

	args := []string{"env", "update", "--name", envName, "--file", input.ManifestPath}
	cmd := exec.CommandContext(ctx, input.CondaExe, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("environment update failed for %q: %w", envName, err)
	}

	logger.Info("Environment updated", "env", envName)
	return &Output{Name: envName, DependencyCount: len(manifest.Dependencies)}, nil
}

// ParseManifest reads and validates a declarative environment manifest.
func ParseManifest(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("conda_env runner requires a manifest_path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment manifest %q: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse environment manifest %q: %w", path, err)
	}
	if len(m.Dependencies) == 0 {
		return nil, fmt.Errorf("environment manifest %q declares no dependencies", path)
	}

	return &m, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunCondaEnv", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunCondaEnv,
	})
}
