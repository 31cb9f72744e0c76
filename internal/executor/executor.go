// Package executor runs button actions off the caller's goroutine, allows at
// most one in-flight invocation per button and hands results back through an
// ordered outbox.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/quickbuttons/internal/config"
	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

var (
	// ErrBusy rejects an invocation of a button that is already running.
	ErrBusy = errors.New("button busy")
	// ErrNotRunning is returned when cancelling a button with nothing to
	// cancel.
	ErrNotRunning = errors.New("button not running")
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("executor shut down")

	errPanic = errors.New("handler panicked")
)

// ButtonSource resolves button definitions. The button registry satisfies it.
type ButtonSource interface {
	Get(id types.ButtonID) (types.Button, error)
}

// Handlers resolves and validates handlers. *runtime.Registry satisfies it.
type Handlers interface {
	Resolve(t types.ButtonType) (runtime.Handler, error)
	ValidateButton(b types.Button) error
}

// Executor owns the in-flight execution records, keyed by button id.
type Executor struct {
	buttons  ButtonSource
	handlers Handlers
	timeouts func() config.Timeouts
	now      func() time.Time
	outbox   *Outbox
	busyLog  rate.Sometimes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[types.ButtonID]*flight
	closed   bool
}

// flight is the executor's bookkeeping for one accepted invocation.
type flight struct {
	rec    *Record
	handle *Handle
	cancel context.CancelFunc
	extra  func(string)

	// mu orders chunk delivery against cancellation: once stopped is set
	// no further chunk reaches the outbox.
	mu      sync.Mutex
	stopped bool
}

func (f *flight) stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.cancel()
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeouts supplies the network and llm bounds. It is consulted on every
// invocation.
func WithTimeouts(fn func() config.Timeouts) Option {
	return func(e *Executor) { e.timeouts = fn }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor.
func New(buttons ButtonSource, handlers Handlers, opts ...Option) *Executor {
	e := &Executor{
		buttons:  buttons,
		handlers: handlers,
		timeouts: func() config.Timeouts { return config.Defaults().Timeouts() },
		now:      time.Now,
		outbox:   newOutbox(),
		busyLog:  rate.Sometimes{Interval: time.Second},
		inflight: make(map[types.ButtonID]*flight),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Outbox returns the queue results are delivered through.
func (e *Executor) Outbox() *Outbox { return e.outbox }

// InvokeOption configures one invocation.
type InvokeOption func(*invocation)

type invocation struct {
	input    string
	vars     map[string]string
	progress func(string)
}

// WithInput passes free text to the handler.
func WithInput(text string) InvokeOption {
	return func(i *invocation) { i.input = text }
}

// WithVars fills {custom:name} wildcards.
func WithVars(vars map[string]string) InvokeOption {
	return func(i *invocation) { i.vars = vars }
}

// WithProgress also sends every chunk to fn, from the worker goroutine.
// Headless callers use it to stream output without draining the outbox.
func WithProgress(fn func(string)) InvokeOption {
	return func(i *invocation) { i.progress = fn }
}

// Invoke starts the button's action on a new goroutine and returns at once.
// A button that already has an in-flight invocation yields ErrBusy; a button
// whose parameters do not validate yields the *runtime.ValidationError.
func (e *Executor) Invoke(id types.ButtonID, opts ...InvokeOption) (*Handle, error) {
	var inv invocation
	for _, opt := range opts {
		opt(&inv)
	}

	b, err := e.buttons.Get(id)
	if err != nil {
		return nil, err
	}
	h, err := e.handlers.Resolve(b.Type)
	if err != nil {
		return nil, err
	}
	if err := e.handlers.ValidateButton(b); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if _, busy := e.inflight[id]; busy {
		e.mu.Unlock()
		e.busyLog.Do(func() { slog.Debug("invocation ignored, button busy", "button_id", id) })
		return nil, fmt.Errorf("%w: %s", ErrBusy, b.DisplayName())
	}

	ctx, cancel := context.WithCancel(e.ctx)
	if d := e.timeoutFor(b); d > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d)
		parent := cancel
		cancel = func() { cancelTimeout(); parent() }
	}
	rec := &Record{
		ID:        types.NewInvocationID(),
		ButtonID:  id,
		Type:      b.Type,
		Label:     b.DisplayName(),
		Status:    StatusPending,
		StartedAt: e.now(),
	}
	f := &flight{
		rec:    rec,
		handle: &Handle{ID: rec.ID, ButtonID: id, done: make(chan struct{})},
		cancel: cancel,
		extra:  inv.progress,
	}
	e.inflight[id] = f
	e.wg.Add(1)
	e.mu.Unlock()

	req := runtime.Request{Button: b, Input: inv.input, Vars: inv.vars}
	req.Progress = func(chunk string) { e.chunk(f, chunk) }
	go e.run(ctx, f, h, req)

	slog.Debug("invocation started", "button_id", id, "type", b.Type, "invocation_id", rec.ID)
	return f.handle, nil
}

// timeoutFor returns the executor-enforced bound for network buttons (post,
// ping, http_test, llm), the button's own timeoutSeconds winning over the
// preference.
func (e *Executor) timeoutFor(b types.Button) time.Duration {
	var d time.Duration
	switch b.Type {
	case types.TypePost, types.TypePing, types.TypeHTTP:
		d = e.timeouts().Post
	case types.TypeLLM:
		d = e.timeouts().LLM
	default:
		return 0
	}
	if secs, ok := b.Params.Float("timeoutSeconds"); ok && secs > 0 {
		d = time.Duration(secs * float64(time.Second))
	}
	return d
}

func (e *Executor) chunk(f *flight, chunk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	e.outbox.push(Event{
		Kind:         EventChunk,
		ButtonID:     f.rec.ButtonID,
		InvocationID: f.rec.ID,
		Chunk:        chunk,
		At:           e.now(),
	})
	if f.extra != nil {
		f.extra(chunk)
	}
}

func (e *Executor) run(ctx context.Context, f *flight, h runtime.Handler, req runtime.Request) {
	defer e.wg.Done()
	defer f.cancel()

	e.mu.Lock()
	f.rec.Status = StatusRunning
	e.mu.Unlock()

	res, err := execute(ctx, h, req)

	// Stop chunk delivery before the terminal record is queued so nothing
	// follows it.
	f.mu.Lock()
	userCancelled := f.stopped
	f.stopped = true
	f.mu.Unlock()

	e.mu.Lock()
	rec := f.rec
	rec.EndedAt = e.now()
	rec.Result = res
	rec.Err = err
	switch {
	case errors.Is(err, errPanic):
		rec.Status, rec.Kind = StatusFailed, runtime.KindPanic
		rec.Message = err.Error()
	case err == nil:
		rec.Status = StatusSucceeded
		rec.Message = res.Message
	case userCancelled && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		rec.Status, rec.Kind = StatusCancelled, runtime.KindCancelled
		rec.Message = "cancelled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rec.Status, rec.Kind = StatusFailed, runtime.KindTimeout
		rec.Message = err.Error()
	default:
		rec.Status, rec.Kind = StatusFailed, runtime.Classify(err)
		if rec.Kind == runtime.KindCancelled {
			rec.Status = StatusCancelled
		}
		rec.Message = err.Error()
	}
	final := *rec
	delete(e.inflight, rec.ButtonID)
	e.outbox.push(Event{
		Kind:         EventDone,
		ButtonID:     rec.ButtonID,
		InvocationID: rec.ID,
		Record:       final,
		At:           rec.EndedAt,
	})
	e.mu.Unlock()

	f.handle.finish(final)
	logAttrs := []any{"button_id", rec.ButtonID, "type", rec.Type, "status", rec.Status, "duration", final.Duration()}
	if final.Status == StatusFailed {
		slog.Warn("invocation failed", append(logAttrs, "kind", rec.Kind, "error", err)...)
	} else {
		slog.Info("invocation finished", logAttrs...)
	}
}

// execute runs the handler and turns a panic into an error so that no
// failure escapes the worker.
func execute(ctx context.Context, h runtime.Handler, req runtime.Request) (res runtime.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panicked", "type", h.Type(), "panic", r, "stack", string(debug.Stack()))
			res, err = runtime.Result{}, fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return h.Execute(ctx, req)
}

// Cancel stops the button's in-flight invocation. A button with nothing in
// flight is handed to its handler when the handler supports cancellation
// (a running timer, playing music); otherwise ErrNotRunning is returned.
func (e *Executor) Cancel(id types.ButtonID) error {
	e.mu.Lock()
	f, ok := e.inflight[id]
	e.mu.Unlock()
	if ok {
		f.stop()
		slog.Info("invocation cancelled", "button_id", id)
		return nil
	}

	b, err := e.buttons.Get(id)
	if err != nil {
		return err
	}
	h, err := e.handlers.Resolve(b.Type)
	if err != nil {
		return err
	}
	c, ok := h.(runtime.Canceller)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, b.DisplayName())
	}
	if err := c.CancelButton(id); err != nil {
		return fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	e.Notify(id, "cancelled")
	return nil
}

// Running returns a copy of the button's in-flight record.
func (e *Executor) Running(id types.ButtonID) (Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.inflight[id]
	if !ok {
		return Record{}, false
	}
	return *f.rec, true
}

// Active returns copies of every in-flight record.
func (e *Executor) Active() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Record, 0, len(e.inflight))
	for _, f := range e.inflight {
		out = append(out, *f.rec)
	}
	return out
}

// Notify queues an out-of-band notice for the button.
func (e *Executor) Notify(id types.ButtonID, msg string) {
	e.outbox.push(Event{Kind: EventNotice, ButtonID: id, Notice: msg, At: e.now()})
}

// Shutdown refuses new invocations, cancels the in-flight ones and waits for
// their workers to finish or ctx to end.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	for _, f := range e.inflight {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
	}
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
