package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// Post sends an HTTP POST and reports the response. The request deadline
// comes from the context; the executor sets it.
type Post struct {
	client *http.Client
	now    func() time.Time
}

// NewPost creates the POST handler. A nil client uses a client with no
// overall timeout of its own.
func NewPost(client *http.Client) *Post {
	if client == nil {
		client = &http.Client{}
	}
	return &Post{client: client, now: time.Now}
}

func (h *Post) Type() types.ButtonType { return types.TypePost }

// ParseHeaders reads "Key: Value" lines. Blank lines are skipped.
func ParseHeaders(s string) (http.Header, error) {
	hdr := make(http.Header)
	for i, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" || strings.ContainsAny(k, " \t") {
			return nil, fmt.Errorf("line %d: want \"Key: Value\", got %q", i+1, line)
		}
		hdr.Add(k, strings.TrimSpace(v))
	}
	return hdr, nil
}

func (h *Post) Validate(p types.Params) error {
	if _, err := NormalizeURL(p.String("url")); err != nil {
		return runtime.Invalid(types.TypePost, "url", "%v", err)
	}
	hdr, err := ParseHeaders(p.String("headers"))
	if err != nil {
		return runtime.Invalid(types.TypePost, "headers", "%v", err)
	}
	// Wildcards are stood in by a value that is valid JSON both bare and
	// inside a string.
	sample := customVar.ReplaceAllString(p.String("body"), "0")
	sample = strings.NewReplacer("{date}", "0", "{time}", "0", "{datetime}", "0").Replace(sample)
	if err := checkBody(contentTypeFor(p, hdr, sample), sample); err != nil {
		return err
	}
	if _, err := timeoutParam(types.TypePost, p); err != nil {
		return err
	}
	return nil
}

func (h *Post) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	p := req.Button.Params
	if err := h.Validate(p); err != nil {
		return runtime.Result{}, err
	}
	now := h.now()
	target, _ := NormalizeURL(Expand(p.String("url"), now, req.Vars))
	hdr, err := ParseHeaders(Expand(p.String("headers"), now, req.Vars))
	if err != nil {
		return runtime.Result{}, runtime.Invalid(types.TypePost, "headers", "%v", err)
	}
	body := Expand(p.String("body"), now, req.Vars)
	ct := contentTypeFor(p, hdr, body)
	if err := checkBody(ct, body); err != nil {
		return runtime.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return runtime.Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = hdr
	httpReq.Header.Set("Content-Type", ct)
	httpReq.Header.Set("User-Agent", "QuickButtons/1.0")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return runtime.Result{}, networkError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCapture))
	if err != nil {
		return runtime.Result{StatusCode: resp.StatusCode}, networkError(ctx, err)
	}
	res := runtime.Result{
		StatusCode: resp.StatusCode,
		Output:     renderBody(resp.Header.Get("Content-Type"), raw),
		Message:    resp.Status,
	}
	req.Emit(res.Output)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("%w: %s", runtime.ErrHTTPStatus, resp.Status)
	}
	return res, nil
}

// contentTypeFor picks the request content type: the contentType param,
// then a Content-Type header line, then a guess from the body.
func contentTypeFor(p types.Params, hdr http.Header, body string) string {
	if ct := p.String("contentType"); ct != "" {
		return ct
	}
	if ct := hdr.Get("Content-Type"); ct != "" {
		return ct
	}
	return guessContentType(body)
}

// checkBody rejects a JSON-typed body that does not parse.
func checkBody(contentType, body string) error {
	if !strings.Contains(strings.ToLower(contentType), "json") || strings.TrimSpace(body) == "" {
		return nil
	}
	if !json.Valid([]byte(body)) {
		return runtime.Invalid(types.TypePost, "body", "is not valid JSON for content type %s", contentType)
	}
	return nil
}

func guessContentType(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// renderBody converts HTML responses to markdown so they read well in a
// notification; other bodies are returned as text.
func renderBody(contentType string, raw []byte) string {
	if strings.Contains(strings.ToLower(contentType), "html") {
		if md, err := htmltomarkdown.ConvertString(string(raw)); err == nil {
			return md
		}
	}
	return string(raw)
}

// networkError maps a transport failure onto the handler taxonomy. A
// cancelled context is returned as is so the executor can tell a user
// cancel from a deadline.
func networkError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", runtime.ErrTimeout, ctxErr)
		}
		return ctxErr
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %w", runtime.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", runtime.ErrNetwork, err)
}
