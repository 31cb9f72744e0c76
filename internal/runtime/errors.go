package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/user/quickbuttons/internal/types"
)

// Handler failure sentinels. Handlers wrap them with %w so callers can test
// with errors.Is.
var (
	ErrUnknownType       = errors.New("unknown button type")
	ErrSpawnFailed       = errors.New("spawn failed")
	ErrNetwork           = errors.New("network error")
	ErrTimeout           = errors.New("timed out")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrStreamInterrupted = errors.New("stream interrupted")
	ErrUnsupported       = errors.New("unsupported")
	ErrExitStatus        = errors.New("non-zero exit")
	ErrHTTPStatus        = errors.New("unexpected HTTP status")
	ErrDuplicateStart    = errors.New("already running")
)

// ValidationError describes a parameter defect on one button.
type ValidationError struct {
	Type   types.ButtonType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s button: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("invalid %s button: %s: %s", e.Type, e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(t types.ButtonType, field, format string, args ...any) *ValidationError {
	return &ValidationError{Type: t, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrorKind is the short, stable name of a failure class shown next to a
// failed execution.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindValidation   ErrorKind = "validation"
	KindSpawnFailed  ErrorKind = "spawn_failed"
	KindNetwork      ErrorKind = "network"
	KindTimeout      ErrorKind = "timeout"
	KindAuthFailed   ErrorKind = "auth_failed"
	KindNotFound     ErrorKind = "not_found"
	KindRateLimited  ErrorKind = "rate_limited"
	KindInterrupted  ErrorKind = "stream_interrupted"
	KindUnsupported  ErrorKind = "unsupported"
	KindExitStatus   ErrorKind = "exit_status"
	KindHTTPStatus   ErrorKind = "http_status"
	KindDuplicate    ErrorKind = "duplicate_start"
	KindCancelled    ErrorKind = "cancelled"
	KindPanic        ErrorKind = "panic"
	KindUnclassified ErrorKind = "error"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrTimeout, KindTimeout},
	{ErrSpawnFailed, KindSpawnFailed},
	{ErrAuthFailed, KindAuthFailed},
	{ErrRateLimited, KindRateLimited},
	{ErrStreamInterrupted, KindInterrupted},
	{ErrNotFound, KindNotFound},
	{ErrUnsupported, KindUnsupported},
	{ErrExitStatus, KindExitStatus},
	{ErrHTTPStatus, KindHTTPStatus},
	{ErrDuplicateStart, KindDuplicate},
	{ErrNetwork, KindNetwork},
	{context.DeadlineExceeded, KindTimeout},
	{context.Canceled, KindCancelled},
	{os.ErrNotExist, KindNotFound},
}

// Classify maps err onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnclassified
}
