// Package http_client provides a stateful, shareable HTTP client asset.
// Steps that talk to external services declare it in their `uses` block so
// connections are pooled across the combination instead of per step.
package http_client

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"resty.dev/v3"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for creating an http_client resource.
type Input struct {
	Timeout    string `grid:"timeout"`
	RetryCount int    `grid:"retry_count"`
	BaseURL    string `grid:"base_url"`
}

// CreateHTTPClient is the 'create' handler for the asset. It returns a live
// *resty.Client shared by every step that uses the resource.
func CreateHTTPClient(ctx context.Context, input *Input) (*resty.Client, error) {
	logger := ctxlog.FromContext(ctx)

	timeout, err := time.ParseDuration(input.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(input.RetryCount)
	if input.BaseURL != "" {
		client.SetBaseURL(input.BaseURL)
	}

	logger.Debug("HTTP client created", "timeout", timeout, "retries", input.RetryCount)
	return client, nil
}

// DestroyHTTPClient is the 'destroy' handler for the asset.
func DestroyHTTPClient(client *resty.Client) error {
	return client.Close()
}

// Register registers the asset handlers and interface with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateHTTPClient", &registry.RegisteredAsset{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		CreateFn:  CreateHTTPClient,
	})
	r.RegisterAssetHandler("DestroyHTTPClient", &registry.RegisteredAsset{
		DestroyFn: DestroyHTTPClient,
	})
	r.RegisterAssetInterface("http_client", reflect.TypeOf((*resty.Client)(nil)))
}
