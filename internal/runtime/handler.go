package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/user/quickbuttons/internal/types"
)

// Request carries one invocation into a handler.
type Request struct {
	Button types.Button
	// Input is free text supplied with the invocation: a chat prompt, or a
	// timer action such as "pause".
	Input string
	// Vars fills {custom:name} wildcards.
	Vars map[string]string
	// Progress receives incremental output. It may be nil.
	Progress func(chunk string)
}

// Emit forwards a chunk to Progress when one is set.
func (r Request) Emit(chunk string) {
	if r.Progress != nil && chunk != "" {
		r.Progress(chunk)
	}
}

// Result is what a handler hands back when it finishes. A handler that
// fails returns a Result alongside its error so captured output is not lost.
type Result struct {
	Message    string
	Output     string
	ExitCode   int
	StatusCode int
}

// Handler implements one button type.
type Handler interface {
	Type() types.ButtonType
	Validate(p types.Params) error
	Execute(ctx context.Context, req Request) (Result, error)
}

// Canceller is implemented by handlers whose effect outlives Execute, such
// as timers. The executor calls it when a button with no in-flight execution
// is cancelled.
type Canceller interface {
	CancelButton(id types.ButtonID) error
}

// Registry maps button types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[types.ButtonType]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[types.ButtonType]Handler)}
}

// Register adds a handler, replacing any previous one for the same type.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Resolve returns the handler for t.
func (r *Registry) Resolve(t types.ButtonType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return h, nil
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []types.ButtonType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ButtonType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateButton checks that b's type is registered and its parameters
// satisfy the handler.
func (r *Registry) ValidateButton(b types.Button) error {
	h, err := r.Resolve(b.Type)
	if err != nil {
		return &ValidationError{Type: b.Type, Field: "type", Reason: "unknown button type"}
	}
	if err := b.Params.CheckScalars(); err != nil {
		return &ValidationError{Type: b.Type, Field: "params", Reason: err.Error()}
	}
	return h.Validate(b.Params)
}
