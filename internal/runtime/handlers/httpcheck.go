package handlers

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// HTTPTest checks that a site answers: it times a GET and reports the
// status and whether the certificate is trusted. A certificate that fails
// verification is retried without verification so the site is still
// reported as reachable, marked untrusted.
type HTTPTest struct {
	client   *http.Client
	insecure *http.Client
	now      func() time.Time
}

// NewHTTPTest creates the HTTP test handler. Like Post, the deadline comes
// from the context.
func NewHTTPTest(client *http.Client) *HTTPTest {
	if client == nil {
		client = &http.Client{}
	}
	insecure := &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		CheckRedirect: client.CheckRedirect,
	}
	return &HTTPTest{client: client, insecure: insecure, now: time.Now}
}

func (h *HTTPTest) Type() types.ButtonType { return types.TypeHTTP }

func (h *HTTPTest) Validate(p types.Params) error {
	if _, err := NormalizeURL(p.String("url")); err != nil {
		return runtime.Invalid(types.TypeHTTP, "url", "%v", err)
	}
	if _, err := timeoutParam(types.TypeHTTP, p); err != nil {
		return err
	}
	return nil
}

func (h *HTTPTest) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	p := req.Button.Params
	if err := h.Validate(p); err != nil {
		return runtime.Result{}, err
	}
	target, _ := NormalizeURL(Expand(p.String("url"), h.now(), req.Vars))

	trusted := true
	start := h.now()
	resp, err := h.get(ctx, h.client, target)
	if err != nil && untrustedCert(err) {
		trusted = false
		start = h.now()
		resp, err = h.get(ctx, h.insecure, target)
	}
	if err != nil {
		return runtime.Result{Message: target + " unreachable"}, networkError(ctx, err)
	}
	elapsed := h.now().Sub(start)
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxCapture))
	resp.Body.Close()

	security := "http"
	if resp.TLS != nil {
		security = "https, certificate trusted"
		if !trusted {
			security = "https, certificate NOT trusted"
		}
	}
	msg := fmt.Sprintf("%s: %s in %s (%s)", target, resp.Status, elapsed.Round(time.Millisecond), security)
	req.Emit(msg + "\n")
	res := runtime.Result{StatusCode: resp.StatusCode, Output: msg, Message: msg}
	if resp.StatusCode >= 400 {
		return res, fmt.Errorf("%w: %s", runtime.ErrHTTPStatus, resp.Status)
	}
	return res, nil
}

func (h *HTTPTest) get(ctx context.Context, c *http.Client, target string) (*http.Response, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	r.Header.Set("User-Agent", "QuickButtons/1.0")
	return c.Do(r)
}

// untrustedCert reports whether err is a certificate verification failure.
func untrustedCert(err error) bool {
	var unknown x509.UnknownAuthorityError
	var invalid x509.CertificateInvalidError
	var hostname x509.HostnameError
	var verify *tls.CertificateVerificationError
	return errors.As(err, &unknown) || errors.As(err, &invalid) ||
		errors.As(err, &hostname) || errors.As(err, &verify) ||
		strings.Contains(err.Error(), "x509:")
}
