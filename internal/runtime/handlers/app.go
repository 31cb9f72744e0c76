package handlers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// App launches a program. By default the program is started detached and
// the invocation completes once it is running; with wait set the button
// stays busy until the program exits and its output is captured.
type App struct {
	now      func() time.Time
	lookPath func(string) (string, error)
	start    func(cmd *exec.Cmd) error
}

// NewApp creates the application launcher handler.
func NewApp() *App {
	return &App{now: time.Now, lookPath: exec.LookPath, start: startDetached}
}

func (h *App) Type() types.ButtonType { return types.TypeApp }

func (h *App) Validate(p types.Params) error {
	if !p.Has("path") {
		return runtime.Invalid(types.TypeApp, "path", "is required")
	}
	if p.Has("wait") {
		if _, ok := flag(p, "wait"); !ok {
			return runtime.Invalid(types.TypeApp, "wait", "must be true or false")
		}
	}
	if _, err := timeoutParam(types.TypeApp, p); err != nil {
		return err
	}
	return nil
}

// resolve finds the program: a path is checked on disk, a bare name is
// looked up on PATH.
func (h *App) resolve(path string) (string, error) {
	if strings.ContainsRune(path, os.PathSeparator) || strings.Contains(path, "/") {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", runtime.ErrNotFound, path)
			}
			return "", fmt.Errorf("%w: %s: %w", runtime.ErrSpawnFailed, path, err)
		}
		return path, nil
	}
	found, err := h.lookPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not on PATH", runtime.ErrNotFound, path)
	}
	return found, nil
}

func (h *App) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	p := req.Button.Params
	if err := h.Validate(p); err != nil {
		return runtime.Result{}, err
	}
	name, err := h.resolve(p.String("path"))
	if err != nil {
		return runtime.Result{ExitCode: -1}, err
	}
	args := strings.Fields(Expand(p.String("args"), h.now(), req.Vars))

	if wait, _ := flag(p, "wait"); wait {
		timeout, _ := timeoutParam(types.TypeApp, p)
		return runProcess(ctx, req, processSpec{name: name, args: args, dir: p.String("workdir"), timeout: timeout})
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = p.String("workdir")
	if err := h.start(cmd); err != nil {
		return runtime.Result{ExitCode: -1}, fmt.Errorf("%w: %s: %w", runtime.ErrSpawnFailed, name, err)
	}
	msg := "launched " + name
	if cmd.Process != nil {
		msg = fmt.Sprintf("launched %s (pid %d)", name, cmd.Process.Pid)
	}
	req.Emit(msg + "\n")
	return runtime.Result{Message: msg}, nil
}

// startDetached starts cmd in its own process group and reaps it in the
// background.
func startDetached(cmd *exec.Cmd) error {
	isolate(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// flag reads a boolean param written as true/false, yes/no or 1/0.
func flag(p types.Params, key string) (bool, bool) {
	if n, ok := p.Float(key); ok {
		return n != 0, n == 0 || n == 1
	}
	switch strings.ToLower(p.String(key)) {
	case "true", "yes", "on":
		return true, true
	case "false", "no", "off", "":
		return false, true
	}
	return false, false
}
