package executor

import (
	"context"

	"github.com/user/quickbuttons/internal/types"
)

// Handle refers to one accepted invocation.
type Handle struct {
	ID       types.InvocationID
	ButtonID types.ButtonID

	done   chan struct{}
	record Record
}

func (h *Handle) finish(rec Record) {
	h.record = rec
	close(h.done)
}

// Done is closed once the invocation has a terminal record.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the invocation ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Record, error) {
	select {
	case <-h.done:
		return h.record, nil
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}
