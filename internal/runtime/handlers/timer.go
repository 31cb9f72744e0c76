package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/timer"
	"github.com/user/quickbuttons/internal/types"
)

// Pomodoro defaults, in seconds.
const (
	defaultWork       = 25 * 60
	defaultShortBreak = 5 * 60
	defaultLongBreak  = 15 * 60
	defaultCycles     = 4
)

// Timer arms countdown and pomodoro timers. Execute returns as soon as the
// timer service has accepted the action.
type Timer struct {
	svc *timer.Service
}

// NewTimer creates the timer handler.
func NewTimer(svc *timer.Service) *Timer { return &Timer{svc: svc} }

func (h *Timer) Type() types.ButtonType { return types.TypeTimer }

// ParseClock accepts "h:mm:ss", "mm:ss" or a plain number of seconds.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("want h:mm:ss, got %q", s)
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("want h:mm:ss, got %q", s)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

func seconds(p types.Params, key string, def float64) (time.Duration, error) {
	if !p.Has(key) {
		return time.Duration(def * float64(time.Second)), nil
	}
	v, ok := p.Float(key)
	if !ok {
		return 0, runtime.Invalid(types.TypeTimer, key, "must be a number of seconds")
	}
	return time.Duration(v * float64(time.Second)), nil
}

// SpecFromParams builds the timer a button describes.
func SpecFromParams(p types.Params) (timer.Spec, error) {
	var spec timer.Spec
	var err error
	switch mode := strings.ToLower(p.String("mode")); mode {
	case "", "countdown":
		switch {
		case p.Has("durationSeconds"):
			spec.Duration, err = seconds(p, "durationSeconds", 0)
		case p.Has("duration"):
			spec.Duration, err = ParseClock(p.String("duration"))
			if err != nil {
				err = runtime.Invalid(types.TypeTimer, "duration", "%v", err)
			}
		default:
			err = runtime.Invalid(types.TypeTimer, "durationSeconds", "is required")
		}
	case "pomodoro":
		spec.Pomodoro = true
		if spec.Work, err = seconds(p, "workSeconds", defaultWork); err != nil {
			return spec, err
		}
		if spec.ShortBreak, err = seconds(p, "shortBreakSeconds", defaultShortBreak); err != nil {
			return spec, err
		}
		if spec.LongBreak, err = seconds(p, "longBreakSeconds", defaultLongBreak); err != nil {
			return spec, err
		}
		cycles, every := int64(defaultCycles), int64(timer.DefaultLongBreakEvery)
		if p.Has("cycles") {
			if cycles, _ = p.Int("cycles"); cycles <= 0 {
				return spec, runtime.Invalid(types.TypeTimer, "cycles", "must be a positive integer")
			}
		}
		if p.Has("longBreakEvery") {
			if every, _ = p.Int("longBreakEvery"); every <= 0 {
				return spec, runtime.Invalid(types.TypeTimer, "longBreakEvery", "must be a positive integer")
			}
		}
		spec.Cycles, spec.LongBreakEvery = int(cycles), int(every)
	default:
		return spec, runtime.Invalid(types.TypeTimer, "mode", "must be countdown or pomodoro, got %q", mode)
	}
	if err != nil {
		return spec, err
	}
	if err := spec.Validate(); err != nil {
		return spec, runtime.Invalid(types.TypeTimer, "duration", "%v", strings.TrimPrefix(err.Error(), timer.ErrInvalidSpec.Error()+": "))
	}
	return spec, nil
}

func (h *Timer) Validate(p types.Params) error {
	_, err := SpecFromParams(p)
	return err
}

// Execute applies the action named by the invocation input: start (the
// default), pause, resume, cancel, skip or rearm.
func (h *Timer) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	id := req.Button.ID
	action := strings.ToLower(strings.TrimSpace(req.Input))

	var st timer.State
	var err error
	switch action {
	case "", "start":
		spec, verr := SpecFromParams(req.Button.Params)
		if verr != nil {
			return runtime.Result{}, verr
		}
		st, err = h.svc.Start(id, spec)
		if errors.Is(err, timer.ErrAlreadyRunning) {
			return runtime.Result{}, fmt.Errorf("%w: timer %s is %s", runtime.ErrDuplicateStart, id, st.Phase)
		}
	case "pause":
		st, err = h.svc.Pause(id)
	case "resume":
		st, err = h.svc.Resume(id)
	case "skip":
		st, err = h.svc.Skip(id)
	case "cancel", "stop":
		err = h.svc.Cancel(id)
		st = h.svc.State(id)
	case "rearm", "reset":
		err = h.svc.Rearm(id)
		st = h.svc.State(id)
	default:
		return runtime.Result{}, fmt.Errorf("%w: timer action %q", runtime.ErrUnsupported, action)
	}
	if err != nil {
		return runtime.Result{}, fmt.Errorf("timer %s: %w", id, err)
	}
	return runtime.Result{Message: Describe(st)}, nil
}

// CancelButton returns the button's timer to Idle.
func (h *Timer) CancelButton(id types.ButtonID) error {
	return h.svc.Cancel(id)
}

// Describe renders a timer state as a short status line.
func Describe(st timer.State) string {
	switch st.Phase {
	case timer.Running, timer.Paused:
		if st.Pomodoro {
			return fmt.Sprintf("%s %s %d/%d %s", st.Phase, st.Sub, st.Cycle, st.Cycles, timer.FormatRemaining(st.Remaining))
		}
		return fmt.Sprintf("%s %s", st.Phase, timer.FormatRemaining(st.Remaining))
	default:
		return string(st.Phase)
	}
}
