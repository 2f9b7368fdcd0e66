// Package workspace provides a stateful asset managing a temporary working
// directory for one workflow combination. The directory is created before
// the first step that uses it and removed when its last dependent finishes.
package workspace

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Workspace is the live object injected into steps that use this asset.
type Workspace struct {
	Dir string
}

// Input defines the arguments for creating a workspace resource.
type Input struct {
	Prefix string `grid:"prefix"`
}

// CreateWorkspace is the 'create' handler for the asset.
func CreateWorkspace(ctx context.Context, input *Input) (*Workspace, error) {
	logger := ctxlog.FromContext(ctx)

	dir, err := os.MkdirTemp("", input.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	logger.Info("Workspace created", "dir", dir)
	return &Workspace{Dir: dir}, nil
}

// DestroyWorkspace is the 'destroy' handler for the asset.
func DestroyWorkspace(ws *Workspace) error {
	return os.RemoveAll(ws.Dir)
}

// Register registers the asset handlers and interface with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateWorkspace", &registry.RegisteredAsset{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		CreateFn:  CreateWorkspace,
	})
	r.RegisterAssetHandler("DestroyWorkspace", &registry.RegisteredAsset{
		DestroyFn: DestroyWorkspace,
	})
	r.RegisterAssetInterface("workspace", reflect.TypeOf((*Workspace)(nil)))
}
