package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/visualix/visualix/internal/core"
)

// Categorized is implemented by tools that belong to a named group.
type Categorized interface {
	Category() string
}

type entry struct {
	factory    core.ToolFactory
	descriptor core.ToolDescriptor
}

// Registry maps tool names to zero-argument factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// NewDefaultRegistry registers every built-in tool bound to env.
func NewDefaultRegistry(env Env) *Registry {
	env = env.withDefaults()
	r := NewRegistry()
	for _, group := range [][]spec{colorTools(), filterTools(), effectTools(), transformTools()} {
		for _, s := range group {
			s := s
			if err := r.Register(func() core.Tool { return &filterTool{spec: s, env: env} }); err != nil {
				panic(err)
			}
		}
	}
	return r
}

// Register adds a factory. The factory is invoked once to capture the
// descriptor; registering the same name twice is an error.
func (r *Registry) Register(factory core.ToolFactory) error {
	tool := factory()
	if tool == nil || tool.Name() == "" {
		return fmt.Errorf("tool factory returned an unnamed tool")
	}

	desc := core.ToolDescriptor{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  tool.Parameters(),
	}
	if c, ok := tool.(Categorized); ok {
		desc.Category = c.Category()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Name]; exists {
		return core.ErrConflict("DUPLICATE_TOOL", fmt.Sprintf("tool already registered: %s", desc.Name))
	}
	r.entries[desc.Name] = entry{factory: factory, descriptor: desc}
	return nil
}

// Lookup returns the factory for name or an UNKNOWN_TOOL error.
func (r *Registry) Lookup(name string) (core.ToolFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, core.ErrUnknownTool(name)
	}
	return e.factory, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Descriptor returns the descriptor for name.
func (r *Registry) Descriptor(name string) (core.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.descriptor, ok
}

// DescribeAll returns every descriptor keyed by name.
func (r *Registry) DescribeAll() map[string]core.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]core.ToolDescriptor, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.descriptor
	}
	return out
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByCategory groups sorted tool names by category.
func (r *Registry) ByCategory() map[string][]string {
	out := make(map[string][]string)
	for _, name := range r.Names() {
		d, _ := r.Descriptor(name)
		cat := d.Category
		if cat == "" {
			cat = "other"
		}
		out[cat] = append(out[cat], name)
	}
	return out
}
