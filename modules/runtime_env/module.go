// Package runtime_env provides a runner that resolves the ambient runtime
// locations later steps export as environment variables: the package-manager
// root and the statistical runtime home. The latter is asked from the runtime
// itself rather than hardcoded, since its install prefix varies by host.
package runtime_env

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	CondaDefault string `grid:"conda_default"`
	RExecutable  string `grid:"r_executable"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output carries the resolved locations.
type Output struct {
	CondaRoot string `cty:"conda_root"`
	RHome     string `cty:"r_home"`
}

// OnRunRuntimeEnv is the handler for the 'runtime_env' runner's on_run event.
func OnRunRuntimeEnv(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	condaRoot := os.Getenv("CONDA")
	if condaRoot == "" {
		condaRoot = input.CondaDefault
	}

	rHome, err := probeRHome(ctx, input.RExecutable)
	if err != nil {
		return nil, err
	}

	logger.Info("Runtime environment resolved", "conda_root", condaRoot, "r_home", rHome)
	return &Output{CondaRoot: condaRoot, RHome: rHome}, nil
}

// probeRHome asks the R interpreter for its own home directory, the same
// value `R RHOME` prints on a correctly installed runtime.
func probeRHome(ctx context.Context, rExe string) (string, error) {
	out, err := exec.CommandContext(ctx, rExe, "RHOME").Output()
	if err != nil {
		return "", fmt.Errorf("failed to probe R home via %q: %w", rExe, err)
	}

	home := strings.TrimSpace(string(out))
	if home == "" {
		return "", fmt.Errorf("%q RHOME returned an empty home", rExe)
	}
	return home, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunRuntimeEnv", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunRuntimeEnv,
	})
}
