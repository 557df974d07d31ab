package mocks

import (
	"context"
	"os"
	"sync"

	"github.com/Skryldev/cpr-lab/application/registry"
	"github.com/Skryldev/cpr-lab/infrastructure/cpr"
)

// MockSourceProvider is a test double for ports.SourceProvider. Files
// serves ReadFile, Exists and Size unless the matching func is set.
type MockSourceProvider struct {
	Files map[string][]byte

	ReadFileFunc func(ctx context.Context, path string) ([]byte, error)
	ExistsFunc   func(ctx context.Context, path string) (bool, error)
	SizeFunc     func(ctx context.Context, path string) (int64, error)

	mu    sync.Mutex
	reads []string
}

func (m *MockSourceProvider) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	m.reads = append(m.reads, path)
	m.mu.Unlock()

	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(ctx, path)
	}
	data, ok := m.Files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (m *MockSourceProvider) Exists(ctx context.Context, path string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, path)
	}
	_, ok := m.Files[path]
	return ok, nil
}

func (m *MockSourceProvider) Size(ctx context.Context, path string) (int64, error) {
	if m.SizeFunc != nil {
		return m.SizeFunc(ctx, path)
	}
	data, ok := m.Files[path]
	if !ok {
		return 0, os.ErrNotExist
	}
	return int64(len(data)), nil
}

// Reads returns the paths passed to ReadFile, in call order.
func (m *MockSourceProvider) Reads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reads...)
}

// MockInterpreter is a test double for builder.Interpreter
type MockInterpreter struct {
	InterpretFunc func(chunk cpr.PluginChunk) registry.Interpretation

	mu    sync.Mutex
	calls []string
}

func (m *MockInterpreter) Interpret(chunk cpr.PluginChunk) registry.Interpretation {
	m.mu.Lock()
	m.calls = append(m.calls, chunk.Name)
	m.mu.Unlock()

	if m.InterpretFunc != nil {
		return m.InterpretFunc(chunk)
	}
	return registry.Interpretation{}
}

// Calls returns the plugin names interpreted so far.
func (m *MockInterpreter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
