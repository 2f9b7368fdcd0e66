// Package checkout provides a runner that fetches the repository under test
// into a workspace directory at a specific ref.
package checkout

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
	"github.com/vk/gridci/modules/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Repository string `grid:"repository"`
	Ref        string `grid:"ref"`
	// Depth limits history fetched for the clone. Zero means full history.
	Depth int `grid:"depth"`
}

// Deps declares the workspace the source is checked out into.
type Deps struct {
	Workspace *workspace.Workspace `grid:"workspace"`
}

// Output reports where the source landed and what was checked out.
type Output struct {
	Path string `cty:"path"`
	Ref  string `cty:"ref"`
}

// OnRunCheckout is the handler for the 'checkout' runner's on_run event.
// Local paths and remote URLs are both accepted; git treats them the same.
func OnRunCheckout(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	if strings.TrimSpace(input.Repository) == "" {
		return nil, fmt.Errorf("checkout runner requires a repository")
	}
	if deps.Workspace == nil {
		return nil, fmt.Errorf("checkout runner requires a workspace resource")
	}

	dest := deps.Workspace.Dir
	logger.Info("Checking out source", "repository", input.Repository, "ref", input.Ref, "path", dest)

	cloneArgs := []string{"clone"}
	if input.Depth > 0 {
		cloneArgs = append(cloneArgs, "--depth", fmt.Sprintf("%d", input.Depth))
	}
	cloneArgs = append(cloneArgs, input.Repository, dest)

	if err := runGit(ctx, "", cloneArgs...); err != nil {
		return nil, fmt.Errorf("failed to clone %q: %w", input.Repository, err)
	}

	if ref := strings.TrimSpace(input.Ref); ref != "" {
		// Refs arrive in fully qualified form (refs/heads/<branch>); git
		// checkout wants the short name.
		short := strings.TrimPrefix(ref, "refs/heads/")
		if err := runGit(ctx, dest, "checkout", short); err != nil {
			return nil, fmt.Errorf("failed to checkout ref %q: %w", ref, err)
		}
	}

	logger.Info("Source checked out", "path", dest)
	return &Output{Path: dest, Ref: input.Ref}, nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunCheckout", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunCheckout,
	})
}
