// Package coverage provides a runner that uploads a coverage report to the
// coverage service, authenticated by a secret token. The service answers
// with a JSON document; the report URL is extracted from it by path
// expression so the module is not tied to one response shape.
package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"resty.dev/v3"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Token      string `grid:"token"`
	ReportPath string `grid:"report_path"`
	URL        string `grid:"url"`
	Flags      string `grid:"flags"`
	ResultExpr string `grid:"result_expr"`
}

// Deps declares the shared HTTP client this runner uploads through.
type Deps struct {
	Client *resty.Client `grid:"client"`
}

// Output reports the upload result.
type Output struct {
	ResultURL  string `cty:"result_url"`
	StatusCode int    `cty:"status_code"`
}

// OnRunCoverage is the handler for the 'coverage' runner's on_run event.
func OnRunCoverage(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	if strings.TrimSpace(input.Token) == "" {
		return nil, fmt.Errorf("coverage runner requires a token")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("coverage runner requires an http_client resource")
	}

	report, err := os.ReadFile(input.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage report %q: %w", input.ReportPath, err)
	}

	logger.Info("Uploading coverage report", "report", input.ReportPath, "url", input.URL, "size", len(report))

	req := deps.Client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetQueryParam("token", input.Token).
		SetBody(report)
	if input.Flags != "" {
		req.SetQueryParam("flags", input.Flags)
	}

	resp, err := req.Post(input.URL)
	if err != nil {
		return nil, fmt.Errorf("coverage upload request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("coverage service rejected upload with status %s", resp.Status())
	}

	resultURL, err := extractResultURL(resp.String(), input.ResultExpr)
	if err != nil {
		return nil, err
	}

	logger.Info("Coverage report uploaded", "result_url", resultURL)
	return &Output{ResultURL: resultURL, StatusCode: resp.StatusCode()}, nil
}

// extractResultURL pulls the report URL out of the service's JSON response.
func extractResultURL(body, expr string) (string, error) {
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return "", fmt.Errorf("coverage service returned invalid JSON: %w", err)
	}

	val, err := jsonpath.Get(expr, doc)
	if err != nil {
		return "", fmt.Errorf("result expression %q did not match the response: %w", expr, err)
	}

	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("result expression %q matched a %T, expected a string", expr, val)
	}
	return s, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunCoverage", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunCoverage,
	})
}
