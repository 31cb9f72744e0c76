// internal/scheduler/scheduler.go
package scheduler

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/user/quickbuttons/internal/types"
)

// Source lists the buttons to schedule. The button registry satisfies it.
type Source interface {
	List() []types.Button
}

// Invoker runs a button. A returned error matching Busy is expected when the
// previous run has not finished and only logged at debug level.
type Invoker func(id types.ButtonID) error

// Scheduler fires buttons that carry a cron schedule.
type Scheduler struct {
	source Source
	invoke Invoker
	// Busy is the error an Invoker returns for a button still running.
	busy error

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[types.ButtonID]string
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether expr is a schedule the scheduler accepts.
func Validate(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}

// New creates a Scheduler. busy is the error the invoker returns when a
// button is already running; a tick that hits it is skipped quietly.
func New(source Source, invoke Invoker, busy error) *Scheduler {
	return &Scheduler{
		source:  source,
		invoke:  invoke,
		busy:    busy,
		cron:    cron.New(cron.WithParser(cronParser)),
		entries: make(map[types.ButtonID]string),
	}
}

// Start registers every button that has a schedule and starts the ticker.
// Buttons with an invalid expression are logged and skipped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked()
	s.cron.Start()
}

func (s *Scheduler) registerLocked() {
	for _, b := range s.source.List() {
		if b.Schedule == "" {
			continue
		}
		id, schedule := b.ID, b.Schedule
		_, err := s.cron.AddFunc(schedule, func() { s.fire(id) })
		if err != nil {
			slog.Error("invalid cron schedule", "button_id", id, "schedule", schedule, "error", err)
			continue
		}
		s.entries[id] = schedule
		slog.Info("scheduled button", "button_id", id, "schedule", schedule)
	}
}

func (s *Scheduler) fire(id types.ButtonID) {
	slog.Info("cron firing button", "button_id", id)
	err := s.invoke(id)
	switch {
	case err == nil:
	case s.busy != nil && errors.Is(err, s.busy):
		slog.Debug("scheduled run skipped, button busy", "button_id", id)
	default:
		slog.Warn("scheduled run not started", "button_id", id, "error", err)
	}
}

// Scheduled returns the registered schedules keyed by button.
func (s *Scheduler) Scheduled() map[types.ButtonID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.ButtonID]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Reload stops the existing cron, creates a new one, and registers the
// current buttons again.
func (s *Scheduler) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	s.entries = make(map[types.ButtonID]string)
	s.registerLocked()
	s.cron.Start()
}

// Stop stops the cron ticker. Runs already started are not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Stop()
}
