// internal/delivery/registry_test.go
package delivery

import (
	"errors"
	"testing"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var gotTarget, gotMsg string
	reg.Register("test:", func(target, message string) error {
		gotTarget = target
		gotMsg = message
		return nil
	})

	if err := reg.Deliver("test:123", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTarget != "test:123" {
		t.Errorf("expected target %q, got %q", "test:123", gotTarget)
	}
	if gotMsg != "hello" {
		t.Errorf("expected message %q, got %q", "hello", gotMsg)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Deliver("unknown:123", "hello"); err == nil {
		t.Fatal("expected error for unregistered prefix, got nil")
	}
}

func TestRegistryLogSinkBuiltIn(t *testing.T) {
	if err := NewRegistry().Deliver("log:", "timer done"); err != nil {
		t.Fatalf("log sink should always exist: %v", err)
	}
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	reg := NewRegistry()
	var got string
	reg.Register("telegram:", func(string, string) error { got = "any"; return nil })
	reg.Register("telegram:42", func(string, string) error { got = "specific"; return nil })

	if err := reg.Deliver("telegram:42", "x"); err != nil {
		t.Fatal(err)
	}
	if got != "specific" {
		t.Errorf("expected the longer prefix to win, got %q", got)
	}
	if err := reg.Deliver("telegram:7", "x"); err != nil {
		t.Fatal(err)
	}
	if got != "any" {
		t.Errorf("expected fallback prefix, got %q", got)
	}
}

func TestRegistryBroadcast(t *testing.T) {
	reg := NewRegistry()
	sendErr := errors.New("send failed")
	var calls int
	reg.Register("telegram:", func(string, string) error {
		calls++
		return sendErr
	})

	err := reg.Broadcast([]string{"log:", "telegram:1", "telegram:2", "nowhere:"}, "done")
	if !errors.Is(err, sendErr) {
		t.Errorf("expected joined send error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 telegram calls, got %d", calls)
	}
}
