package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

func httpTestRequest(url string) runtime.Request {
	return runtime.Request{Button: types.Button{ID: 7, Type: types.TypeHTTP, Params: types.Params{"url": url}}}
}

func TestHTTPTestValidate(t *testing.T) {
	h := NewHTTPTest(nil)
	if err := h.Validate(types.Params{}); err == nil {
		t.Error("expected error for missing url")
	}
	if err := h.Validate(types.Params{"url": "example.com"}); err != nil {
		t.Errorf("scheme-less url should be accepted: %v", err)
	}
}

func TestHTTPTestPlain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	res, err := NewHTTPTest(nil).Execute(context.Background(), httpTestRequest(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != 200 || !strings.Contains(res.Message, "200 OK") || !strings.HasSuffix(res.Message, "(http)") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHTTPTestCertificates(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	res, err := NewHTTPTest(server.Client()).Execute(context.Background(), httpTestRequest(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Message, "certificate trusted") {
		t.Errorf("expected trusted certificate, got %q", res.Message)
	}

	// The test server's certificate is self-signed, so a default client
	// rejects it and the check is repeated without verification.
	res, err = NewHTTPTest(nil).Execute(context.Background(), httpTestRequest(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Message, "certificate NOT trusted") {
		t.Errorf("expected untrusted certificate, got %q", res.Message)
	}
}

func TestHTTPTestErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	res, err := NewHTTPTest(nil).Execute(context.Background(), httpTestRequest(server.URL))
	if !errors.Is(err, runtime.ErrHTTPStatus) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", res.StatusCode)
	}
}

func TestHTTPTestUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPTest(nil).Execute(context.Background(), httpTestRequest(url))
	if !errors.Is(err, runtime.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}
