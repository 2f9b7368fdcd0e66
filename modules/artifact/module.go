// Package artifact provides a runner that uploads a job artifact to a
// pre-signed URL. The URL already carries its authorization, so the upload
// is a plain PUT with the file body.
package artifact

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"reflect"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	SourcePath string `grid:"source_path"`
	UploadURL  string `grid:"upload_url"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output reports the upload result.
type Output struct {
	Status string `cty:"status"`
	Size   int64  `cty:"size"`
}

// uploadClient is shared across executions to reuse TCP connections.
var uploadClient = &http.Client{}

// OnRunArtifact is the handler for the 'artifact' runner's on_run event.
func OnRunArtifact(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	file, err := os.Open(input.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %q: %w", input.SourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact %q: %w", input.SourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, input.UploadURL, file)
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(input.SourcePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading artifact", "source", input.SourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("artifact upload rejected with status %s", resp.Status)
	}

	logger.Info("Artifact uploaded", "status", resp.Status)
	return &Output{Status: resp.Status, Size: stat.Size()}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunArtifact", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunArtifact,
	})
}
