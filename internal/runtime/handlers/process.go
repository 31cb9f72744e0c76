package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

const (
	// maxCapture bounds the output kept per stream.
	maxCapture = 64 << 10
	// killGrace is how long a terminated child gets before it is killed.
	killGrace = 3 * time.Second
)

// capture keeps the first maxCapture bytes written to it and forwards every
// write to emit.
type capture struct {
	mu        *sync.Mutex
	buf       bytes.Buffer
	truncated bool
	emit      func(string)
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room := maxCapture - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
			c.truncated = true
		} else {
			c.buf.Write(p)
		}
	} else if len(p) > 0 {
		c.truncated = true
	}
	c.emit(string(p))
	return len(p), nil
}

func (c *capture) String() string {
	if c.truncated {
		return c.buf.String() + "\n[output truncated]"
	}
	return c.buf.String()
}

type processSpec struct {
	name    string
	args    []string
	dir     string
	timeout time.Duration
}

// runProcess starts the child, streams its output through req.Progress and
// waits for it. Cancelling ctx terminates the child's process group; a child
// still alive after killGrace is killed.
func runProcess(ctx context.Context, req runtime.Request, spec processSpec) (runtime.Result, error) {
	runCtx := ctx
	if spec.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.name, spec.args...)
	cmd.Dir = spec.dir
	isolate(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = killGrace

	var mu sync.Mutex
	stdout := &capture{mu: &mu, emit: req.Emit}
	stderr := &capture{mu: &mu, emit: req.Emit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return runtime.Result{ExitCode: -1}, fmt.Errorf("%w: %s: %w", runtime.ErrSpawnFailed, spec.name, err)
	}
	waitErr := cmd.Wait()

	res := runtime.Result{Output: joinOutput(stdout.String(), stderr.String()), ExitCode: -1}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		return res, ctx.Err()
	case runCtx.Err() != nil:
		return res, fmt.Errorf("%w: %s after %s", runtime.ErrTimeout, spec.name, spec.timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) || res.ExitCode > 0 {
		res.Message = fmt.Sprintf("exited with status %d", res.ExitCode)
		return res, fmt.Errorf("%w: %s exited with status %d", runtime.ErrExitStatus, spec.name, res.ExitCode)
	}
	if waitErr != nil {
		return res, fmt.Errorf("wait for %s: %w", spec.name, waitErr)
	}
	res.Message = fmt.Sprintf("finished in %s", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func joinOutput(stdout, stderr string) string {
	stderr = strings.TrimRight(stderr, "\n")
	if stderr == "" {
		return stdout
	}
	if stdout == "" {
		return stderr
	}
	return strings.TrimRight(stdout, "\n") + "\n" + stderr
}

// timeoutParam reads an optional positive timeoutSeconds.
func timeoutParam(t types.ButtonType, p types.Params) (time.Duration, error) {
	if !p.Has("timeoutSeconds") {
		return 0, nil
	}
	secs, ok := p.Float("timeoutSeconds")
	if !ok || secs <= 0 {
		return 0, runtime.Invalid(t, "timeoutSeconds", "must be a positive number")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Timeout returns the button's own timeoutSeconds, or zero when it sets
// none or an invalid one.
func Timeout(p types.Params) time.Duration {
	d, err := timeoutParam("", p)
	if err != nil {
		return 0
	}
	return d
}
