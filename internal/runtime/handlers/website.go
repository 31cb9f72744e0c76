package handlers

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	goruntime "runtime"
	"strings"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// Opener hands a URL or path to the desktop's default application.
type Opener func(target string) error

// OpenDefault launches the platform opener and returns once it has started.
func OpenDefault(target string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", runtime.ErrSpawnFailed, cmd.Path, err)
	}
	go cmd.Wait()
	return nil
}

// Website opens a URL in the default browser.
type Website struct {
	open Opener
}

// NewWebsite creates the website handler. A nil opener uses OpenDefault.
func NewWebsite(open Opener) *Website {
	if open == nil {
		open = OpenDefault
	}
	return &Website{open: open}
}

func (w *Website) Type() types.ButtonType { return types.TypeWebsite }

// NormalizeURL adds https:// to a URL written without a scheme and checks
// that the result names a host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return "", fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("has no host")
	}
	return u.String(), nil
}

func (w *Website) Validate(p types.Params) error {
	if _, err := NormalizeURL(p.String("url")); err != nil {
		return runtime.Invalid(types.TypeWebsite, "url", "%v", err)
	}
	return nil
}

func (w *Website) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	target, err := NormalizeURL(req.Button.Params.String("url"))
	if err != nil {
		return runtime.Result{}, runtime.Invalid(types.TypeWebsite, "url", "%v", err)
	}
	if err := w.open(target); err != nil {
		return runtime.Result{}, err
	}
	return runtime.Result{Message: "opened " + target}, nil
}
