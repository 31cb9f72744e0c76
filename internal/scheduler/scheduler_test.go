// internal/scheduler/scheduler_test.go
package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/quickbuttons/internal/types"
)

type buttonList []types.Button

func (l buttonList) List() []types.Button { return l }

var errBusy = errors.New("busy")

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			t.Fatal("condition not met within 2.5s")
		case <-ticker.C:
			if cond() {
				return
			}
		}
	}
}

func TestSchedulerFiresButton(t *testing.T) {
	buttons := buttonList{
		{ID: 1, Type: types.TypeShell, Schedule: "* * * * * *"},
		{ID: 2, Type: types.TypeShell},
	}

	var fired atomic.Int64
	var other atomic.Int32
	sched := New(buttons, func(id types.ButtonID) error {
		if id == 1 {
			fired.Store(int64(id))
		} else {
			other.Add(1)
		}
		return nil
	}, errBusy)
	sched.Start()
	defer sched.Stop()

	waitFor(t, func() bool { return fired.Load() == 1 })
	if other.Load() != 0 {
		t.Errorf("unscheduled button fired")
	}
}

func TestSchedulerSkipsInvalidSchedule(t *testing.T) {
	buttons := buttonList{
		{ID: 1, Type: types.TypeShell, Schedule: "every tuesday-ish"},
		{ID: 2, Type: types.TypeShell, Schedule: "@hourly"},
	}
	sched := New(buttons, func(types.ButtonID) error { return nil }, errBusy)
	sched.Start()
	defer sched.Stop()

	got := sched.Scheduled()
	if len(got) != 1 || got[2] != "@hourly" {
		t.Errorf("expected only button 2 scheduled, got %v", got)
	}
}

func TestSchedulerBusyIsNotFatal(t *testing.T) {
	var calls atomic.Int32
	sched := New(buttonList{{ID: 1, Schedule: "* * * * * *"}}, func(types.ButtonID) error {
		calls.Add(1)
		return errBusy
	}, errBusy)
	sched.Start()
	defer sched.Stop()

	waitFor(t, func() bool { return calls.Load() >= 2 })
}

func TestSchedulerReload(t *testing.T) {
	src := &mutableSource{}
	sched := New(src, func(types.ButtonID) error { return nil }, errBusy)
	sched.Start()
	defer sched.Stop()
	if len(sched.Scheduled()) != 0 {
		t.Fatal("expected nothing scheduled")
	}

	src.buttons = []types.Button{{ID: 4, Schedule: "0 9 * * 1-5"}}
	sched.Reload()
	if got := sched.Scheduled(); got[4] != "0 9 * * 1-5" {
		t.Errorf("reload did not pick up new schedule: %v", got)
	}
}

type mutableSource struct{ buttons []types.Button }

func (m *mutableSource) List() []types.Button { return m.buttons }

func TestValidate(t *testing.T) {
	for _, ok := range []string{"* * * * *", "*/5 * * * * *", "@daily"} {
		if err := Validate(ok); err != nil {
			t.Errorf("Validate(%q): %v", ok, err)
		}
	}
	if Validate("nope") == nil {
		t.Error("expected error")
	}
}
