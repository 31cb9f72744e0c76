package handlers

import (
	"context"
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// Shell runs a command line through the system shell.
type Shell struct {
	now func() time.Time
}

// NewShell creates the shell handler.
func NewShell() *Shell { return &Shell{now: time.Now} }

func (s *Shell) Type() types.ButtonType { return types.TypeShell }

func (s *Shell) Validate(p types.Params) error {
	if !p.Has("command") {
		return runtime.Invalid(types.TypeShell, "command", "is required")
	}
	if _, err := timeoutParam(types.TypeShell, p); err != nil {
		return err
	}
	return nil
}

func (s *Shell) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	p := req.Button.Params
	if err := s.Validate(p); err != nil {
		return runtime.Result{}, err
	}
	timeout, _ := timeoutParam(types.TypeShell, p)
	name, args := shellCommand(Expand(p.String("command"), s.now(), req.Vars))
	return runProcess(ctx, req, processSpec{
		name:    name,
		args:    args,
		dir:     p.String("workdir"),
		timeout: timeout,
	})
}
