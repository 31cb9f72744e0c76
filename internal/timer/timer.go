// Package timer runs countdown and pomodoro timers keyed by button id.
//
// Remaining time is always derived from a target instant and the current
// wall-clock time, never decremented per tick, so a missed tick or a
// suspended machine does not skew it.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/user/quickbuttons/internal/types"
)

type Phase string

const (
	Idle      Phase = "idle"
	Running   Phase = "running"
	Paused    Phase = "paused"
	Completed Phase = "completed"
)

// SubPhase is the pomodoro segment currently counting down.
type SubPhase string

const (
	Work  SubPhase = "work"
	Break SubPhase = "break"
)

var (
	ErrAlreadyRunning = errors.New("timer already running")
	ErrNotRunning     = errors.New("timer not running")
	ErrNotPaused      = errors.New("timer not paused")
	ErrNotActive      = errors.New("timer not active")
	ErrNotCompleted   = errors.New("timer not completed")
	ErrNotPomodoro    = errors.New("timer is not in pomodoro mode")
	ErrInvalidSpec    = errors.New("invalid timer")
)

// DefaultLongBreakEvery is how many work sessions precede a long break.
const DefaultLongBreakEvery = 4

// Spec describes the timer a button starts.
type Spec struct {
	// Duration is the countdown length. Ignored in pomodoro mode.
	Duration time.Duration

	Pomodoro       bool
	Work           time.Duration
	ShortBreak     time.Duration
	LongBreak      time.Duration
	Cycles         int
	LongBreakEvery int
}

func (s Spec) Validate() error {
	if !s.Pomodoro {
		if s.Duration <= 0 {
			return fmt.Errorf("%w: duration must be positive", ErrInvalidSpec)
		}
		return nil
	}
	if s.Work <= 0 || s.ShortBreak <= 0 {
		return fmt.Errorf("%w: work and break durations must be positive", ErrInvalidSpec)
	}
	if s.Cycles <= 0 {
		return fmt.Errorf("%w: cycles must be positive", ErrInvalidSpec)
	}
	return nil
}

// State is a read-only view of one timer.
type State struct {
	ButtonID  types.ButtonID
	Phase     Phase
	Remaining time.Duration
	// Segment is the length of the segment counting down.
	Segment  time.Duration
	Pomodoro bool
	Sub      SubPhase
	LongOne  bool
	Cycle    int
	Cycles   int
}

// Event is emitted on every transition into Completed. In pomodoro mode a
// segment end emits an event and moves on to the next segment; Final is set
// only once the last work session ends.
type Event struct {
	ButtonID types.ButtonID
	Pomodoro bool
	Ended    SubPhase
	Next     SubPhase
	Cycle    int
	Final    bool
	At       time.Time
}

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

// Round(0) drops the monotonic reading so durations follow the wall clock,
// which keeps advancing while the machine sleeps.
func (wallClock) Now() time.Time { return time.Now().Round(0) }

type entry struct {
	spec      Spec
	phase     Phase
	target    time.Time
	remaining time.Duration
	segment   time.Duration
	sub       SubPhase
	longOne   bool
	cycle     int
}

// Service owns every timer's state.
type Service struct {
	clock  Clock
	notify func(Event)

	mu     sync.Mutex
	timers map[types.ButtonID]*entry
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithNotify sets the completion callback. It is called without the service
// lock held, from whichever goroutine observed the transition.
func WithNotify(fn func(Event)) Option {
	return func(s *Service) { s.notify = fn }
}

func New(opts ...Option) *Service {
	s := &Service{clock: wallClock{}, timers: make(map[types.ButtonID]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start arms a timer. Starting a running or paused timer fails with
// ErrAlreadyRunning; a completed timer is rearmed implicitly.
func (s *Service) Start(id types.ButtonID, spec Spec) (State, error) {
	if err := spec.Validate(); err != nil {
		return State{}, err
	}
	if spec.Pomodoro {
		if spec.LongBreakEvery <= 0 {
			spec.LongBreakEvery = DefaultLongBreakEvery
		}
		if spec.LongBreak <= 0 {
			spec.LongBreak = spec.ShortBreak
		}
	}

	s.mu.Lock()
	now := s.clock.Now()
	events := s.advanceLocked(now)
	if e, ok := s.timers[id]; ok && (e.phase == Running || e.phase == Paused) {
		st := e.state(id, now)
		s.mu.Unlock()
		s.emit(events)
		return st, ErrAlreadyRunning
	}
	e := &entry{spec: spec, phase: Running, cycle: 1}
	if spec.Pomodoro {
		e.sub = Work
		e.segment = spec.Work
	} else {
		e.segment = spec.Duration
	}
	e.target = now.Add(e.segment)
	s.timers[id] = e
	st := e.state(id, now)
	s.mu.Unlock()
	s.emit(events)
	return st, nil
}

func (s *Service) Pause(id types.ButtonID) (State, error) {
	return s.update(id, func(e *entry, now time.Time) error {
		if e.phase != Running {
			return ErrNotRunning
		}
		e.remaining = e.target.Sub(now)
		e.phase = Paused
		return nil
	})
}

func (s *Service) Resume(id types.ButtonID) (State, error) {
	return s.update(id, func(e *entry, now time.Time) error {
		if e.phase != Paused {
			return ErrNotPaused
		}
		e.target = now.Add(e.remaining)
		e.phase = Running
		return nil
	})
}

// Cancel returns a running, paused or completed timer to Idle.
func (s *Service) Cancel(id types.ButtonID) error {
	_, err := s.update(id, func(e *entry, _ time.Time) error {
		if e.phase == Idle {
			return ErrNotActive
		}
		e.phase = Idle
		return nil
	})
	return err
}

// Rearm moves a completed timer back to Idle.
func (s *Service) Rearm(id types.ButtonID) error {
	_, err := s.update(id, func(e *entry, _ time.Time) error {
		if e.phase != Completed {
			return ErrNotCompleted
		}
		e.phase = Idle
		return nil
	})
	return err
}

// Skip ends the current pomodoro segment early, exactly as if it had run
// out, and leaves the next segment running.
func (s *Service) Skip(id types.ButtonID) (State, error) {
	var skipped []Event
	st, err := s.update(id, func(e *entry, now time.Time) error {
		if !e.spec.Pomodoro {
			return ErrNotPomodoro
		}
		if e.phase != Running && e.phase != Paused {
			return ErrNotRunning
		}
		e.phase = Running
		e.target = now
		skipped = e.advance(id, now)
		return nil
	})
	s.emit(skipped)
	return st, err
}

func (s *Service) update(id types.ButtonID, fn func(*entry, time.Time) error) (State, error) {
	s.mu.Lock()
	now := s.clock.Now()
	events := s.advanceLocked(now)
	e, ok := s.timers[id]
	if !ok {
		s.mu.Unlock()
		s.emit(events)
		return State{ButtonID: id, Phase: Idle}, ErrNotActive
	}
	err := fn(e, now)
	st := e.state(id, now)
	if e.phase == Idle {
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.emit(events)
	return st, err
}

// State reports the timer for id, Idle when none exists.
func (s *Service) State(id types.ButtonID) State {
	s.mu.Lock()
	now := s.clock.Now()
	events := s.advanceLocked(now)
	st := State{ButtonID: id, Phase: Idle}
	if e, ok := s.timers[id]; ok {
		st = e.state(id, now)
	}
	s.mu.Unlock()
	s.emit(events)
	return st
}

// States reports every non-idle timer ordered by button id.
func (s *Service) States() []State {
	s.mu.Lock()
	now := s.clock.Now()
	events := s.advanceLocked(now)
	out := make([]State, 0, len(s.timers))
	for id, e := range s.timers {
		out = append(out, e.state(id, now))
	}
	s.mu.Unlock()
	s.emit(events)
	sort.Slice(out, func(i, j int) bool { return out[i].ButtonID < out[j].ButtonID })
	return out
}

// Tick applies every transition that is due.
func (s *Service) Tick() {
	s.mu.Lock()
	events := s.advanceLocked(s.clock.Now())
	s.mu.Unlock()
	s.emit(events)
}

// Run ticks at the given interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Service) advanceLocked(now time.Time) []Event {
	var events []Event
	for id, e := range s.timers {
		events = append(events, e.advance(id, now)...)
	}
	return events
}

func (s *Service) emit(events []Event) {
	if s.notify == nil {
		return
	}
	for _, ev := range events {
		s.notify(ev)
	}
}

// advance applies due transitions. Pomodoro segments chain from the previous
// target rather than from now, so several segments missed during a suspend
// are all accounted for.
func (e *entry) advance(id types.ButtonID, now time.Time) []Event {
	var events []Event
	for e.phase == Running && !now.Before(e.target) {
		ev := Event{ButtonID: id, Pomodoro: e.spec.Pomodoro, Ended: e.sub, Cycle: e.cycle, At: e.target}
		if !e.spec.Pomodoro {
			e.phase = Completed
			ev.Final = true
			events = append(events, ev)
			break
		}
		switch e.sub {
		case Work:
			if e.cycle >= e.spec.Cycles {
				e.phase = Completed
				ev.Final = true
				events = append(events, ev)
				return events
			}
			e.sub = Break
			e.longOne = e.cycle%e.spec.LongBreakEvery == 0
			if e.longOne {
				e.segment = e.spec.LongBreak
			} else {
				e.segment = e.spec.ShortBreak
			}
		case Break:
			e.sub = Work
			e.longOne = false
			e.cycle++
			e.segment = e.spec.Work
		}
		ev.Next = e.sub
		e.target = e.target.Add(e.segment)
		events = append(events, ev)
	}
	return events
}

func (e *entry) state(id types.ButtonID, now time.Time) State {
	st := State{
		ButtonID: id,
		Phase:    e.phase,
		Segment:  e.segment,
		Pomodoro: e.spec.Pomodoro,
		Sub:      e.sub,
		LongOne:  e.longOne,
		Cycle:    e.cycle,
		Cycles:   e.spec.Cycles,
	}
	switch e.phase {
	case Running:
		st.Remaining = max(e.target.Sub(now), 0)
	case Paused:
		st.Remaining = e.remaining
	}
	return st
}

// FormatRemaining renders d as h:mm:ss or m:ss, rounding up to the second.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	h, m, sec := secs/3600, (secs/60)%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
