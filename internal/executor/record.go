package executor

import (
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// Status is the lifecycle state of an execution record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Record tracks one invocation of a button. Only the worker running the
// invocation writes to it; everyone else sees copies.
type Record struct {
	ID        types.InvocationID
	ButtonID  types.ButtonID
	Type      types.ButtonType
	Label     string
	Status    Status
	Kind      runtime.ErrorKind
	Message   string
	Result    runtime.Result
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration is how long the invocation ran. It is zero until it ends.
func (r Record) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Summary is the one-line text shown for a finished record.
func (r Record) Summary() string {
	switch r.Status {
	case StatusSucceeded:
		if r.Message != "" {
			return r.Message
		}
		return "done"
	case StatusFailed:
		if r.Kind != runtime.KindNone && r.Kind != runtime.KindUnclassified {
			return string(r.Kind) + ": " + r.Message
		}
		return r.Message
	default:
		return string(r.Status)
	}
}
