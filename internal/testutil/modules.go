package testutil

import (
	"context"
	"reflect"
	"sync"

	"github.com/vk/gridci/internal/registry"
)

// SimpleModule is a test helper for easily creating a mock module that
// registers a single runner or asset handler.
type SimpleModule struct {
	RunnerName string
	Runner     *registry.RegisteredRunner

	AssetName string
	Asset     *registry.RegisteredAsset
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.RunnerName != "" && m.Runner != nil {
		r.RegisterRunner(m.RunnerName, m.Runner)
	}
	if m.AssetName != "" && m.Asset != nil {
		r.RegisterAssetHandler(m.AssetName, m.Asset)
	}
}

// NoOpModule registers a single "NoOp" runner that takes no inputs, requires
// no dependencies, and does nothing. Useful for tests that should fail before
// execution begins but still need HCL that passes registry validation.
type NoOpModule struct{}

// Register implements the registry.Module interface.
func (m *NoOpModule) Register(r *registry.Registry) {
	r.RegisterRunner("NoOp", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, input any) (any, error) {
			return nil, nil
		},
	})
}

// RecorderModule registers a "record" runner that appends each executed
// step's id argument to a shared, thread-safe list. Concurrency and ordering
// tests assert on the recorded sequence.
type RecorderModule struct {
	mu  sync.Mutex
	ids []string

	// Gate, when non-nil, is closed by the test to release all in-flight
	// steps; each step also sends on Started before blocking on it.
	Gate    chan struct{}
	Started chan string
}

// IDs returns a copy of the recorded step ids.
func (m *RecorderModule) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Register implements the registry.Module interface.
func (m *RecorderModule) Register(r *registry.Registry) {
	type recordInput struct {
		ID string `grid:"id"`
	}

	r.RegisterRunner("OnRunRecord", &registry.RegisteredRunner{
		NewInput:  func() any { return new(recordInput) },
		InputType: reflect.TypeOf(recordInput{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, inputRaw any) (any, error) {
			input := inputRaw.(*recordInput)

			if m.Started != nil {
				m.Started <- input.ID
			}
			if m.Gate != nil {
				<-m.Gate
			}

			m.mu.Lock()
			m.ids = append(m.ids, input.ID)
			m.mu.Unlock()
			return nil, nil
		},
	})
}
