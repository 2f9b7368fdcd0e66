package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/gridci/internal/config"
	"github.com/vk/gridci/internal/ctxlog"
)

// ValidateRegistry performs a strict parity check between manifests and Go
// code. It checks both the presence of inputs and the compatibility of their
// types, and that every manifest lifecycle handler actually exists.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for runnerType, def := range r.DefinitionRegistry {
		handler, ok := r.HandlerRegistry[def.Lifecycle.OnRun]
		if !ok {
			errs = append(errs, fmt.Sprintf("runner '%s': manifest names handler '%s', which is not registered", runnerType, def.Lifecycle.OnRun))
			continue
		}

		if handler.InputType == nil {
			if len(def.Inputs) > 0 {
				errs = append(errs, fmt.Sprintf("runner '%s': manifest declares inputs, but Go handler has no input struct", runnerType))
			}
			continue
		}

		errs = append(errs, checkInputParity(fmt.Sprintf("runner '%s'", runnerType), handler.InputType, def.Inputs, logger)...)
	}

	for assetType, def := range r.AssetDefinitionRegistry {
		createHandler, ok := r.AssetHandlerRegistry[def.Lifecycle.Create]
		if !ok {
			errs = append(errs, fmt.Sprintf("asset '%s': create handler '%s' is not registered", assetType, def.Lifecycle.Create))
			continue
		}
		destroyHandler, ok := r.AssetHandlerRegistry[def.Lifecycle.Destroy]
		if !ok || destroyHandler.DestroyFn == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': destroy handler '%s' is not registered", assetType, def.Lifecycle.Destroy))
		}
		if _, ok := r.AssetInterfaceRegistry[assetType]; !ok {
			errs = append(errs, fmt.Sprintf("asset '%s': no Go interface registered for the asset type", assetType))
		}

		if createHandler.InputType != nil {
			errs = append(errs, checkInputParity(fmt.Sprintf("asset '%s'", assetType), createHandler.InputType, def.Inputs, logger)...)
		} else if len(def.Inputs) > 0 {
			errs = append(errs, fmt.Sprintf("asset '%s': manifest declares inputs, but Go create handler has no input struct", assetType))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// checkInputParity compares a Go input struct's `grid` tagged fields against
// the manifest's declared inputs, in both directions, then checks types.
func checkInputParity(owner string, inputType reflect.Type, defs map[string]*config.InputDefinition, logger *slog.Logger) []string {
	var errs []string

	manifestInputs := make(map[string]struct{}, len(defs))
	for name := range defs {
		manifestInputs[name] = struct{}{}
	}

	goInputs := make(map[string]reflect.StructField)
	for i := 0; i < inputType.NumField(); i++ {
		field := inputType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("grid")
		tagName := strings.Split(tag, ",")[0]
		if tagName != "" && tagName != "-" {
			goInputs[tagName] = field
		}
	}

	for name := range goInputs {
		if _, ok := manifestInputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("%s: Go struct has field for input '%s' which is not declared in manifest", owner, name))
		}
	}
	for name := range manifestInputs {
		if _, ok := goInputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("%s: manifest declares input '%s' which is not found in Go struct", owner, name))
		}
	}

	for name, inputDef := range defs {
		goField, ok := goInputs[name]
		if !ok {
			continue // Already reported by the presence check.
		}

		manifestType := inputDef.Type
		if manifestType.Equals(cty.DynamicPseudoType) {
			logger.Warn("Manifest input uses 'type = any', which disables static type checking.", "owner", owner, "input", name)
			continue
		}

		goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s, input '%s': could not imply cty type from Go field type %s: %v", owner, name, goField.Type, err))
			continue
		}

		if !manifestType.Equals(goFieldType) {
			errs = append(errs, fmt.Sprintf("%s, input '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides '%s'",
				owner, name, manifestType.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
		}
	}

	return errs
}
