package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// HandlerFunc executes one tool call. Arguments arrive as the decoded "data"
// object from the model's JSON output.
type HandlerFunc func(ctx context.Context, sess *Session, args map[string]any) (any, error)

// Tool bundles a handler with the description shown to the model.
type Tool struct {
	Name        string
	Description string
	// Example is a sample "data" payload, rendered into the system prompt.
	Example string
	Handler HandlerFunc
}

// Registry holds the registered tools. Registration order is preserved so
// the system prompt stays stable between runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name overwrites the handler but
// keeps its original position.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns the handler for a tool name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return t.Handler, true
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Describe renders the tool list for the system prompt.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, name := range r.order {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s", t.Name, t.Description)
		if t.Example != "" {
			fmt.Fprintf(&b, " Example data: %s", t.Example)
		}
		b.WriteString("\n")
	}
	return b.String()
}
