package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages available tools for the agent
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// NewDefaultRegistry registers the three judge tools.
func NewDefaultRegistry(searcher RulingSearcher, book RulebookSource) (*Registry, error) {
	r := NewRegistry()
	for _, tool := range []Tool{
		NewRulingSearchTool(searcher),
		NewMechanicsTool(),
		NewRulebookTool(book),
	} {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool to the registry
// Returns an error if a tool with the same name already exists
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns all registered tool names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Describe renders one "- name: description" line per tool in registration
// order, for the system prompt.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := make([]string, 0, len(r.order))
	for _, name := range r.order {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, r.tools[name].Description()))
	}
	return strings.Join(lines, "\n")
}

// Execute runs the named tool and always yields observation text. Unknown
// tools and backend failures become error results.
func (r *Registry) Execute(ctx context.Context, name, input string, scope Scope) ToolResult {
	tool, ok := r.Get(name)
	if !ok {
		return ToolResult{Content: fmt.Sprintf("Tool %q not found", name), IsError: true}
	}

	result, err := tool.Execute(ctx, input, scope)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Tool execution error: %v", err), IsError: true}
	}
	return result
}
