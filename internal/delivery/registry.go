// internal/delivery/registry.go
package delivery

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Handler delivers a message to a target such as "telegram:12345".
type Handler func(target, message string) error

// Registry routes notices to delivery handlers by target prefix
// (e.g. "log:", "telegram:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a registry with the "log:" sink already registered.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("log:", logHandler)
	return r
}

func logHandler(target, message string) error {
	slog.Info("notice", "target", target, "message", message)
	return nil
}

// Register adds a handler for targets starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler with the longest matching prefix and calls it.
// Returns an error if no handler is registered for the target.
func (r *Registry) Deliver(target, message string) error {
	r.mu.RLock()
	var best string
	var handler Handler
	for prefix, h := range r.handlers {
		if strings.HasPrefix(target, prefix) && len(prefix) > len(best) {
			best, handler = prefix, h
		}
	}
	r.mu.RUnlock()
	if handler == nil {
		return fmt.Errorf("no delivery handler for target: %s", target)
	}
	return handler(target, message)
}

// Broadcast delivers message to every target and joins the failures.
func (r *Registry) Broadcast(targets []string, message string) error {
	var errs []error
	for _, t := range targets {
		if err := r.Deliver(t, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prefixes lists the registered prefixes.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
