// Package matrix expands a workflow's strategy matrix into the cross-product
// of its axis values.
package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridci/internal/config"
)

// Combination is one point in the matrix cross-product.
type Combination struct {
	// Values maps axis name to the selected value, e.g. {"python": "3.7"}.
	Values map[string]string
}

// ID renders a stable, human-readable identifier like "python=3.7,os=linux".
// Axis names are sorted so the ID is deterministic.
func (c Combination) ID() string {
	if len(c.Values) == 0 {
		return "default"
	}
	names := make([]string, 0, len(c.Values))
	for name := range c.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, c.Values[name]))
	}
	return strings.Join(parts, ",")
}

// Vars exposes the combination to HCL expressions as the `matrix` object.
func (c Combination) Vars() cty.Value {
	if len(c.Values) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(c.Values))
	for name, value := range c.Values {
		attrs[name] = cty.StringVal(value)
	}
	return cty.ObjectVal(attrs)
}

// Expand computes the cross-product of the strategy's matrix axes in
// deterministic order (axes sorted by name, values in declaration order).
// A workflow without a matrix yields a single empty combination, so callers
// always have at least one combination to run.
func Expand(strategy *config.Strategy) []Combination {
	if strategy == nil || len(strategy.Matrix) == 0 {
		return []Combination{{Values: map[string]string{}}}
	}

	names := make([]string, 0, len(strategy.Matrix))
	for name := range strategy.Matrix {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []Combination{{Values: map[string]string{}}}
	for _, name := range names {
		values := strategy.Matrix[name]
		next := make([]Combination, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, value := range values {
				merged := make(map[string]string, len(combo.Values)+1)
				for k, v := range combo.Values {
					merged[k] = v
				}
				merged[name] = value
				next = append(next, Combination{Values: merged})
			}
		}
		combos = next
	}
	return combos
}
