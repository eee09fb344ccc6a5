package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Func is one registered capability: the handler plus the metadata the
// planner prompt needs to advertise it.
type Func struct {
	Description string
	Parameters  map[string]any // JSON Schema for the arguments
	Run         func(ctx context.Context, args map[string]any) (map[string]any, error)
}

// UnknownCapabilityError is returned by Lookup when no handler is registered
// for a (module, function) pair.
type UnknownCapabilityError struct {
	Module   string
	Function string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("no capability registered for %s.%s", e.Module, e.Function)
}

// Registry maps (module, function) pairs to capability handlers. Registration
// is validated up front so dispatch never has to second-guess a handler.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func key(module, function string) string {
	return module + "." + function
}

// Register adds a capability handler. It rejects empty names, nil handlers,
// and duplicate registrations.
func (r *Registry) Register(module, function string, fn Func) error {
	if module == "" || function == "" {
		return fmt.Errorf("capability needs both a module and a function name")
	}
	if fn.Run == nil {
		return fmt.Errorf("capability %s.%s has no handler", module, function)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(module, function)
	if _, exists := r.funcs[k]; exists {
		return fmt.Errorf("capability %s is already registered", k)
	}
	r.funcs[k] = fn
	return nil
}

// Lookup returns the handler for a (module, function) pair, or an
// *UnknownCapabilityError if none is registered.
func (r *Registry) Lookup(module, function string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[key(module, function)]
	if !ok {
		return Func{}, &UnknownCapabilityError{Module: module, Function: function}
	}
	return fn, nil
}

// Catalog renders the registered capabilities grouped by module, with each
// function's description and required arguments, for injection into the
// planner's system prompt.
func (r *Registry) Catalog() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byModule := make(map[string][]string)
	for k, fn := range r.funcs {
		parts := strings.SplitN(k, ".", 2)
		line := fmt.Sprintf("  - %s(%s): %s", parts[1], argList(fn.Parameters), fn.Description)
		byModule[parts[0]] = append(byModule[parts[0]], line)
	}

	var modules []string
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	var b strings.Builder
	for _, m := range modules {
		fns := byModule[m]
		sort.Strings(fns)
		fmt.Fprintf(&b, "%s:\n%s\n", m, strings.Join(fns, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// argList flattens a JSON Schema's property names, marking required ones
// with a star.
func argList(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}
	required := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []any:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	var names []string
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if required[name] {
			names[i] = name + "*"
		}
	}
	return strings.Join(names, ", ")
}
