package artifact

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/monobuild/internal/project"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

type key struct {
	project string
	stage   stage.Stage
}

// MemoryStore is an in-process Store, used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	outputs map[key]Output
	lookups int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{outputs: make(map[key]Output)}
}

// Set records out for the named project without a context.
func (m *MemoryStore) Set(projectName string, s stage.Stage, out Output) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if out == nil {
		delete(m.outputs, key{projectName, s})
		return m
	}
	if _, ok := out.(NotFound); ok {
		delete(m.outputs, key{projectName, s})
		return m
	}
	m.outputs[key{projectName, s}] = out
	return m
}

// LastOutput implements Lookup.
func (m *MemoryStore) LastOutput(_ context.Context, p *project.Project, s stage.Stage) (Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if out, ok := m.outputs[key{p.Name, s}]; ok {
		return out, nil
	}
	return NotFound{}, nil
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, p *project.Project, s stage.Stage, out Output) error {
	m.Set(p.Name, s, out)
	return nil
}

// Lookups reports how many times LastOutput was called.
func (m *MemoryStore) Lookups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookups
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
