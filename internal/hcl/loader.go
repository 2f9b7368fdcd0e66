package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/gridci/internal/config"
	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/fsutil"
	"github.com/vk/gridci/internal/schema"
)

// Loader implements config.Loader for HCL-formatted configuration.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load discovers all .hcl files under the given paths, parses them, and
// translates them into the unified config model. Workflow files and module
// manifests may be freely mixed; each file is classified by the blocks it
// contains.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)

	model := &config.Model{
		Runners: make(map[string]*config.RunnerDefinition),
		Assets:  make(map[string]*config.AssetDefinition),
	}

	var filePaths []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan %q for .hcl files: %w", path, err)
		}
		filePaths = append(filePaths, found...)
	}
	if len(filePaths) == 0 {
		return nil, nil, fmt.Errorf("no .hcl files found under %v", paths)
	}
	logger.Debug("Discovered configuration files.", "count", len(filePaths))

	parser := hclparse.NewParser()
	var steps []*config.Step
	var resources []*config.Resource

	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", filePath, diags)
		}

		var f schema.File
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode %s: %w", filePath, diags)
		}

		if f.Workflow != nil {
			if model.Workflow != nil {
				return nil, nil, fmt.Errorf("%s: duplicate workflow block (already defined as %q)", filePath, model.Workflow.Name)
			}
			wf, err := l.translateWorkflow(f.Workflow)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", filePath, err)
			}
			model.Workflow = wf
			logger.Debug("Loaded workflow block.", "file", filePath, "name", wf.Name)
		}

		for _, s := range f.Steps {
			steps = append(steps, l.translateStep(s))
		}
		for _, r := range f.Resources {
			resources = append(resources, l.translateResource(r))
		}

		if f.Runner != nil {
			if _, exists := model.Runners[f.Runner.Type]; exists {
				return nil, nil, fmt.Errorf("%s: duplicate runner definition %q", filePath, f.Runner.Type)
			}
			def, err := l.translateRunnerDefinition(f.Runner)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", filePath, err)
			}
			model.Runners[def.Type] = def
		}
		if f.Asset != nil {
			if _, exists := model.Assets[f.Asset.Type]; exists {
				return nil, nil, fmt.Errorf("%s: duplicate asset definition %q", filePath, f.Asset.Type)
			}
			def, err := l.translateAssetDefinition(f.Asset)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", filePath, err)
			}
			model.Assets[def.Type] = def
		}
	}

	if model.Workflow == nil {
		return nil, nil, fmt.Errorf("no workflow block found in %v", paths)
	}
	model.Workflow.Steps = steps
	model.Workflow.Resources = resources

	logger.Debug("Configuration model assembled.",
		"steps", len(steps),
		"resources", len(resources),
		"runners", len(model.Runners),
		"assets", len(model.Assets),
	)
	return model, NewConverter(), nil
}
