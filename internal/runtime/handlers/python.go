package handlers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// Preferences are the user settings handlers consult at execution time.
// *config.Document satisfies it.
type Preferences interface {
	PythonExecutable() string
	Volume() float64
}

// PrefsFunc returns the current preferences. It is called on every
// execution so edits made while the program runs take effect.
type PrefsFunc func() Preferences

type defaultPrefs struct{}

func (defaultPrefs) PythonExecutable() string { return "" }
func (defaultPrefs) Volume() float64          { return 1 }

func orDefault(fn PrefsFunc) PrefsFunc {
	if fn == nil {
		return func() Preferences { return defaultPrefs{} }
	}
	return fn
}

// Python runs a script with a Python interpreter.
type Python struct {
	prefs    PrefsFunc
	lookPath func(string) (string, error)
	now      func() time.Time
}

// NewPython creates the Python handler.
func NewPython(prefs PrefsFunc) *Python {
	return &Python{prefs: orDefault(prefs), lookPath: exec.LookPath, now: time.Now}
}

func (h *Python) Type() types.ButtonType { return types.TypePython }

func (h *Python) Validate(p types.Params) error {
	script := p.String("script")
	if strings.TrimSpace(script) == "" {
		return runtime.Invalid(types.TypePython, "script", "is required")
	}
	f, err := os.Open(script)
	if err != nil {
		return runtime.Invalid(types.TypePython, "script", "cannot be read: %v", err)
	}
	info, err := f.Stat()
	f.Close()
	if err != nil || info.IsDir() {
		return runtime.Invalid(types.TypePython, "script", "is not a file")
	}
	if _, err := timeoutParam(types.TypePython, p); err != nil {
		return err
	}
	return nil
}

// interpreter picks the button's interpreter, then the preference, then
// python3 or python from PATH.
func (h *Python) interpreter(p types.Params) (string, error) {
	if v := p.String("interpreter"); v != "" {
		return v, nil
	}
	if v := h.prefs().PythonExecutable(); v != "" {
		return v, nil
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := h.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no python interpreter found on PATH", runtime.ErrSpawnFailed)
}

func (h *Python) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	p := req.Button.Params
	script := p.String("script")
	if _, err := os.Stat(script); err != nil {
		return runtime.Result{}, fmt.Errorf("%w: script %s: %w", runtime.ErrNotFound, script, err)
	}
	if err := h.Validate(p); err != nil {
		return runtime.Result{}, err
	}
	interp, err := h.interpreter(p)
	if err != nil {
		return runtime.Result{}, err
	}
	timeout, _ := timeoutParam(types.TypePython, p)

	args := append([]string{script}, strings.Fields(Expand(p.String("args"), h.now(), req.Vars))...)
	dir := p.String("workdir")
	if dir == "" {
		dir = filepath.Dir(script)
	}
	return runProcess(ctx, req, processSpec{name: interp, args: args, dir: dir, timeout: timeout})
}
