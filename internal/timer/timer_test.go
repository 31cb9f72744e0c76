package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestRemainingFollowsWallClock(t *testing.T) {
	clock := newFakeClock()
	svc := New(WithClock(clock))

	_, err := svc.Start(1, Spec{Duration: 10 * time.Minute})
	require.NoError(t, err)

	// No ticks at all: remaining is still target - now.
	clock.Advance(3*time.Minute + 250*time.Millisecond)
	st := svc.State(1)
	assert.Equal(t, Running, st.Phase)
	assert.Equal(t, 6*time.Minute+59*time.Second+750*time.Millisecond, st.Remaining)
}

func TestCountdownCompletesOnceAndNotifies(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	svc := New(WithClock(clock), WithNotify(rec.record))

	_, err := svc.Start(7, Spec{Duration: 5 * time.Second})
	require.NoError(t, err)

	clock.Advance(time.Hour) // e.g. the machine slept
	svc.Tick()
	svc.Tick()

	st := svc.State(7)
	assert.Equal(t, Completed, st.Phase)
	assert.Zero(t, st.Remaining)
	events := rec.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].Final)
	assert.Equal(t, clock.Now().Add(-time.Hour).Add(5*time.Second), events[0].At)
}

func TestDuplicateStartRejected(t *testing.T) {
	clock := newFakeClock()
	svc := New(WithClock(clock))

	_, err := svc.Start(1, Spec{Duration: time.Minute})
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	st, err := svc.Start(1, Spec{Duration: time.Hour})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, 50*time.Second, st.Remaining, "original timer is untouched")

	_, err = svc.Pause(1)
	require.NoError(t, err)
	_, err = svc.Start(1, Spec{Duration: time.Hour})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestPauseResumeCancel(t *testing.T) {
	clock := newFakeClock()
	svc := New(WithClock(clock))
	_, err := svc.Start(2, Spec{Duration: time.Minute})
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	st, err := svc.Pause(2)
	require.NoError(t, err)
	assert.Equal(t, Paused, st.Phase)
	assert.Equal(t, 40*time.Second, st.Remaining)

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 40*time.Second, svc.State(2).Remaining, "paused timers do not run down")

	_, err = svc.Pause(2)
	assert.ErrorIs(t, err, ErrNotRunning)

	st, err = svc.Resume(2)
	require.NoError(t, err)
	assert.Equal(t, Running, st.Phase)
	clock.Advance(15 * time.Second)
	assert.Equal(t, 25*time.Second, svc.State(2).Remaining)

	require.NoError(t, svc.Cancel(2))
	assert.Equal(t, Idle, svc.State(2).Phase)
	assert.ErrorIs(t, svc.Cancel(2), ErrNotActive)
	assert.Empty(t, svc.States())
}

func TestRearmAndRestartAfterCompletion(t *testing.T) {
	clock := newFakeClock()
	svc := New(WithClock(clock))
	_, err := svc.Start(3, Spec{Duration: time.Second})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Rearm(3), ErrNotCompleted)

	clock.Advance(2 * time.Second)
	require.NoError(t, svc.Rearm(3))
	assert.Equal(t, Idle, svc.State(3).Phase)

	_, err = svc.Start(3, Spec{Duration: time.Second})
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	_, err = svc.Start(3, Spec{Duration: time.Second})
	assert.NoError(t, err, "a completed timer can be started again")
}

func TestPomodoroCycle(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	svc := New(WithClock(clock), WithNotify(rec.record))
	spec := Spec{
		Pomodoro:       true,
		Work:           25 * time.Minute,
		ShortBreak:     5 * time.Minute,
		LongBreak:      15 * time.Minute,
		Cycles:         3,
		LongBreakEvery: 2,
	}
	_, err := svc.Start(9, spec)
	require.NoError(t, err)
	st := svc.State(9)
	assert.Equal(t, Work, st.Sub)
	assert.Equal(t, 1, st.Cycle)

	clock.Advance(25 * time.Minute)
	st = svc.State(9)
	assert.Equal(t, Running, st.Phase)
	assert.Equal(t, Break, st.Sub)
	assert.False(t, st.LongOne)
	assert.Equal(t, 5*time.Minute, st.Remaining)

	clock.Advance(5 * time.Minute)
	st = svc.State(9)
	assert.Equal(t, Work, st.Sub)
	assert.Equal(t, 2, st.Cycle)

	// Second work session ends: long break (every 2 sessions). Skip it.
	clock.Advance(25 * time.Minute)
	st = svc.State(9)
	assert.True(t, st.LongOne)
	assert.Equal(t, 15*time.Minute, st.Remaining)
	st, err = svc.Skip(9)
	require.NoError(t, err)
	assert.Equal(t, Work, st.Sub)
	assert.Equal(t, 3, st.Cycle)

	clock.Advance(25 * time.Minute)
	st = svc.State(9)
	assert.Equal(t, Completed, st.Phase)

	events := rec.all()
	require.Len(t, events, 5)
	for _, ev := range events[:4] {
		assert.False(t, ev.Final)
	}
	assert.True(t, events[4].Final)
	assert.Equal(t, Work, events[4].Ended)
}

func TestPomodoroCatchesUpAfterSuspend(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	svc := New(WithClock(clock), WithNotify(rec.record))
	_, err := svc.Start(1, Spec{Pomodoro: true, Work: 10 * time.Minute, ShortBreak: 2 * time.Minute, Cycles: 4})
	require.NoError(t, err)

	clock.Advance(13 * time.Minute) // work (10) + break (2) + 1 minute into work #2
	st := svc.State(1)
	assert.Equal(t, Work, st.Sub)
	assert.Equal(t, 2, st.Cycle)
	assert.Equal(t, 9*time.Minute, st.Remaining)
	assert.Len(t, rec.all(), 2)
}

func TestSkipRequiresPomodoro(t *testing.T) {
	svc := New(WithClock(newFakeClock()))
	_, err := svc.Start(1, Spec{Duration: time.Minute})
	require.NoError(t, err)
	_, err = svc.Skip(1)
	assert.ErrorIs(t, err, ErrNotPomodoro)
}

func TestInvalidSpecs(t *testing.T) {
	svc := New()
	for _, spec := range []Spec{
		{},
		{Duration: -time.Second},
		{Pomodoro: true, Work: time.Minute},
		{Pomodoro: true, Work: time.Minute, ShortBreak: time.Minute},
	} {
		_, err := svc.Start(1, spec)
		assert.ErrorIs(t, err, ErrInvalidSpec, "%+v", spec)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	done := make(chan Event, 1)
	svc := New(WithNotify(func(ev Event) { done <- ev }))
	_, err := svc.Start(4, Spec{Duration: 30 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx, 5*time.Millisecond)

	select {
	case ev := <-done:
		assert.EqualValues(t, 4, ev.ButtonID)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not complete")
	}
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "0:00", FormatRemaining(0))
	assert.Equal(t, "0:01", FormatRemaining(200*time.Millisecond))
	assert.Equal(t, "25:00", FormatRemaining(25*time.Minute))
	assert.Equal(t, "1:02:03", FormatRemaining(time.Hour+2*time.Minute+3*time.Second))
}
