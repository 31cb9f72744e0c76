//go:build !windows

package handlers

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

func appRequest(p types.Params) runtime.Request {
	return runtime.Request{Button: types.Button{ID: 4, Type: types.TypeApp, Params: p}}
}

func TestAppValidate(t *testing.T) {
	h := NewApp()
	if err := h.Validate(types.Params{}); err == nil {
		t.Error("expected error for missing path")
	}
	if err := h.Validate(types.Params{"path": "editor", "wait": "maybe"}); err == nil {
		t.Error("expected error for bad wait flag")
	}
	if err := h.Validate(types.Params{"path": "editor", "wait": "yes", "timeoutSeconds": 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAppLaunchDetached(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	var started *exec.Cmd
	h := NewApp()
	h.start = func(cmd *exec.Cmd) error {
		started = cmd
		return nil
	}
	req := appRequest(types.Params{"path": bin, "args": "--open {custom:file}", "workdir": "/tmp"})
	req.Vars = map[string]string{"file": "notes.txt"}

	res, err := h.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if started == nil {
		t.Fatal("program was not started")
	}
	if want := []string{bin, "--open", "notes.txt"}; !reflect.DeepEqual(started.Args, want) {
		t.Errorf("args = %v, want %v", started.Args, want)
	}
	if started.Dir != "/tmp" {
		t.Errorf("dir = %q", started.Dir)
	}
	if !strings.HasPrefix(res.Message, "launched "+bin) {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestAppLaunchReal(t *testing.T) {
	res, err := NewApp().Execute(context.Background(), appRequest(types.Params{"path": "true"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Message, "pid") {
		t.Errorf("expected pid in message, got %q", res.Message)
	}
}

func TestAppWaitCapturesOutput(t *testing.T) {
	res, err := NewApp().Execute(context.Background(),
		appRequest(types.Params{"path": "echo", "args": "hi there", "wait": "true"}))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Output) != "hi there" {
		t.Errorf("expected output, got %q", res.Output)
	}
}

func TestAppNotFound(t *testing.T) {
	h := NewApp()
	_, err := h.Execute(context.Background(), appRequest(types.Params{"path": filepath.Join(t.TempDir(), "missing")}))
	if !errors.Is(err, runtime.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	h.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	_, err = h.Execute(context.Background(), appRequest(types.Params{"path": "no-such-tool"}))
	if !errors.Is(err, runtime.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
