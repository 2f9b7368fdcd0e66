// Package shell provides a runner that executes a command line through a
// shell, capturing its output. Lint passes, test runs, and package installs
// are all shell steps; the tools themselves stay external.
package shell

import (
	"bytes"
	"context"
	"errors"
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
	Command    string            `grid:"command"`
	Shell      string            `grid:"shell"`
	WorkingDir string            `grid:"working_dir"`
	Env        map[string]string `grid:"env"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output captures the command's result for downstream steps.
type Output struct {
	Stdout   string `cty:"stdout"`
	Stderr   string `cty:"stderr"`
	ExitCode int    `cty:"exit_code"`
}

// OnRunShell is the handler for the 'shell' runner's on_run lifecycle event.
// A non-zero exit code is returned as an error; the step's failure policy
// decides whether that fails the run.
func OnRunShell(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	if strings.TrimSpace(input.Command) == "" {
		return nil, fmt.Errorf("shell runner requires a non-empty command")
	}

	cmd := exec.CommandContext(ctx, input.Shell, "-c", input.Command)
	cmd.Dir = input.WorkingDir

	cmd.Env = os.Environ()
	for k, v := range input.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("Executing command", "command", input.Command)
	runErr := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			logger.Warn("Command exited non-zero", "exit_code", out.ExitCode, "stderr", out.Stderr)
			return out, fmt.Errorf("command exited with code %d: %w", out.ExitCode, runErr)
		}
		return nil, fmt.Errorf("failed to execute command: %w", runErr)
	}

	logger.Debug("Command finished", "exit_code", out.ExitCode)
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunShell", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunShell,
	})
}
