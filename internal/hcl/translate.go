package hcl

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/gridci/internal/config"
	"github.com/vk/gridci/internal/schema"
)

// translateWorkflow converts the HCL workflow block into the agnostic model.
func (l *Loader) translateWorkflow(w *schema.Workflow) (*config.Workflow, error) {
	wf := &config.Workflow{
		Name:     w.Name,
		On:       w.On,
		Branches: w.Branches,
		Env:      w.Env,
	}
	if len(w.On) == 0 {
		return nil, fmt.Errorf("workflow %q: 'on' must list at least one trigger event", w.Name)
	}

	if w.Strategy != nil {
		strat := &config.Strategy{
			MaxParallel: w.Strategy.MaxParallel,
			FailFast:    w.Strategy.FailFast,
		}
		if w.Strategy.Matrix != nil {
			axes, err := l.translateMatrix(w.Strategy.Matrix)
			if err != nil {
				return nil, fmt.Errorf("workflow %q: %w", w.Name, err)
			}
			strat.Matrix = axes
		}
		wf.Strategy = strat
	}
	return wf, nil
}

// translateMatrix reads the matrix block's attributes as named axes. Each
// axis value must be a statically-known list; elements are coerced to
// strings so that versions like "3.10" survive untouched.
func (l *Loader) translateMatrix(m *schema.Matrix) (map[string][]string, error) {
	attrs, diags := m.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid matrix block: %w", diags)
	}

	axes := make(map[string][]string, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("matrix axis %q: %w", name, diags)
		}
		if !val.IsKnown() || val.IsNull() || !(val.Type().IsTupleType() || val.Type().IsListType()) {
			return nil, fmt.Errorf("matrix axis %q must be a static list of values", name)
		}

		var values []string
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			strVal, err := convert.Convert(elem, cty.String)
			if err != nil {
				return nil, fmt.Errorf("matrix axis %q: cannot convert %s to string: %w", name, elem.Type().FriendlyName(), err)
			}
			values = append(values, strVal.AsString())
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("matrix axis %q has no values", name)
		}
		axes[name] = values
	}
	return axes, nil
}

// translateStep converts the HCL-specific step schema into the agnostic model.
func (l *Loader) translateStep(s *schema.Step) *config.Step {
	return &config.Step{
		RunnerType:      s.RunnerType,
		Name:            s.Name,
		Arguments:       extractArgAttributes(s.Arguments),
		Uses:            extractUsesAttributes(s.Uses),
		DependsOn:       s.DependsOn,
		ContinueOnError: s.ContinueOnError,
	}
}

// translateResource converts the HCL-specific resource schema into the agnostic model.
func (l *Loader) translateResource(r *schema.Resource) *config.Resource {
	return &config.Resource{
		AssetType: r.AssetType,
		Name:      r.Name,
		Arguments: extractArgAttributes(r.Arguments),
		DependsOn: r.DependsOn,
	}
}

// translateRunnerDefinition converts a runner manifest into the agnostic model.
func (l *Loader) translateRunnerDefinition(s *schema.RunnerDefinition) (*config.RunnerDefinition, error) {
	r := &config.RunnerDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
		Uses:        make(map[string]*config.UsesDefinition),
	}
	if s.Lifecycle == nil || s.Lifecycle.OnRun == "" {
		return nil, fmt.Errorf("runner %q: lifecycle.on_run is required", s.Type)
	}
	r.Lifecycle = &config.Lifecycle{OnRun: s.Lifecycle.OnRun}

	for _, in := range s.Inputs {
		def, err := translateInput(s.Type, in)
		if err != nil {
			return nil, err
		}
		r.Inputs[in.Name] = def
	}
	for _, out := range s.Outputs {
		ty, err := translateTypeExpr(s.Type, out.Name, out.Type)
		if err != nil {
			return nil, err
		}
		r.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Type:        ty,
			Description: out.Description,
		}
	}
	for _, use := range s.Uses {
		r.Uses[use.LocalName] = &config.UsesDefinition{
			LocalName: use.LocalName,
			AssetType: use.AssetType,
		}
	}
	return r, nil
}

// translateAssetDefinition converts an asset manifest into the agnostic model.
func (l *Loader) translateAssetDefinition(s *schema.AssetDefinition) (*config.AssetDefinition, error) {
	a := &config.AssetDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
	}
	if s.Lifecycle == nil {
		return nil, fmt.Errorf("asset %q: lifecycle block is required", s.Type)
	}
	a.Lifecycle = &config.AssetLifecycle{Create: s.Lifecycle.Create, Destroy: s.Lifecycle.Destroy}

	for _, in := range s.Inputs {
		def, err := translateInput(s.Type, in)
		if err != nil {
			return nil, err
		}
		a.Inputs[in.Name] = def
	}
	for _, out := range s.Outputs {
		ty, err := translateTypeExpr(s.Type, out.Name, out.Type)
		if err != nil {
			return nil, err
		}
		a.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Type:        ty,
			Description: out.Description,
		}
	}
	return a, nil
}

// translateInput converts one manifest input block, resolving its type
// constraint and validating any declared default against it.
func translateInput(owner string, in *schema.InputDefinition) (*config.InputDefinition, error) {
	ty, err := translateTypeExpr(owner, in.Name, in.Type)
	if err != nil {
		return nil, err
	}

	var defaultVal *cty.Value
	var optional bool
	if in.Default != nil && !in.Default.IsNull() {
		val := *in.Default
		if !ty.Equals(cty.DynamicPseudoType) {
			converted, err := convert.Convert(val, ty)
			if err != nil {
				return nil, fmt.Errorf("%s: default for input %q does not match type %s: %w", owner, in.Name, ty.FriendlyName(), err)
			}
			val = converted
		}
		defaultVal = &val
		optional = true
	}

	return &config.InputDefinition{
		Name:        in.Name,
		Type:        ty,
		Description: in.Description,
		Default:     defaultVal,
		Optional:    optional,
		Sensitive:   in.Sensitive,
	}, nil
}

// translateTypeExpr resolves a manifest type expression (string, number,
// map(string), any, ...) into a cty type constraint.
func translateTypeExpr(owner, name string, expr hcl.Expression) (cty.Type, error) {
	if expr == nil {
		return cty.DynamicPseudoType, nil
	}
	ty, diags := typeexpr.TypeConstraint(expr)
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("%s: invalid type for %q: %w", owner, name, diags)
	}
	return ty, nil
}

// extractArgAttributes flattens an arguments block into a name → expression map.
func extractArgAttributes(args *schema.StepArgs) map[string]hcl.Expression {
	if args == nil {
		return nil
	}
	return bodyAttributes(args.Body)
}

// extractUsesAttributes flattens a uses block into a name → expression map.
func extractUsesAttributes(uses *schema.UsesBlock) map[string]hcl.Expression {
	if uses == nil {
		return nil
	}
	return bodyAttributes(uses.Body)
}

func bodyAttributes(body hcl.Body) map[string]hcl.Expression {
	attrs, _ := body.JustAttributes()
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]hcl.Expression, len(attrs))
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out[name] = attrs[name].Expr
	}
	return out
}
