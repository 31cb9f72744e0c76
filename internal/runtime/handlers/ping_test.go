//go:build !windows

package handlers

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

func pingRequest(p types.Params) runtime.Request {
	return runtime.Request{Button: types.Button{ID: 6, Type: types.TypePing, Params: p}}
}

func TestParsePingTimes(t *testing.T) {
	unix := `PING 1.1.1.1 (1.1.1.1) 56(84) bytes of data.
64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=12.4 ms
64 bytes from 1.1.1.1: icmp_seq=2 ttl=57 time=10.6 ms

--- 1.1.1.1 ping statistics ---
rtt min/avg/max/mdev = 10.6/11.5/12.4/0.9 ms`
	if got := ParsePingTimes(unix); !reflect.DeepEqual(got, []float64{12.4, 10.6}) {
		t.Errorf("unix output: got %v", got)
	}

	windows := "Reply from 10.0.0.1: bytes=32 time=7ms TTL=64\r\nReply from 10.0.0.1: bytes=32 time<1ms TTL=64\r\n"
	if got := ParsePingTimes(windows); !reflect.DeepEqual(got, []float64{7, 1}) {
		t.Errorf("windows output: got %v", got)
	}

	if got := ParsePingTimes("Request timed out.\ntime"); len(got) != 0 {
		t.Errorf("expected no times, got %v", got)
	}
}

func TestPingValidate(t *testing.T) {
	h := NewPing(nil)
	if err := h.Validate(types.Params{}); err != nil {
		t.Errorf("host is optional: %v", err)
	}
	bad := []types.Params{
		{"host": "two words"},
		{"count": 0},
		{"count": 1.5},
		{"count": 99},
		{"port": 70000},
	}
	for _, p := range bad {
		if err := h.Validate(p); err == nil {
			t.Errorf("Validate(%v): expected error", p)
		}
	}
}

func TestPingUsesSystemTool(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ping")
	script := "#!/bin/sh\necho \"args: $*\"\necho '64 bytes from h: icmp_seq=1 time=2.0 ms'\necho '64 bytes from h: icmp_seq=2 time=4.0 ms'\n"
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	h := NewPing(func(string) (string, error) { return bin, nil })

	var chunks []string
	req := pingRequest(types.Params{"host": "example.org", "count": 2})
	req.Progress = func(c string) { chunks = append(chunks, c) }
	res, err := h.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output, "args: -c 2 example.org") {
		t.Errorf("unexpected invocation: %q", res.Output)
	}
	if res.Message != "example.org: avg 3.0 ms over 2 replies" {
		t.Errorf("unexpected message %q", res.Message)
	}
	if len(chunks) == 0 {
		t.Error("expected streamed output")
	}
}

func TestPingUnreachable(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ping")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho 'no route'\nexit 2\n"), 0755); err != nil {
		t.Fatal(err)
	}
	h := NewPing(func(string) (string, error) { return bin, nil })
	res, err := h.Execute(context.Background(), pingRequest(types.Params{"host": "10.255.255.1"}))
	if !errors.Is(err, runtime.ErrExitStatus) {
		t.Fatalf("expected ErrExitStatus, got %v", err)
	}
	if res.Message != "10.255.255.1 unreachable" {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestPingFallsBackToTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	_, port, _ := net.SplitHostPort(ln.Addr().String())

	h := NewPing(func(string) (string, error) { return "", exec.ErrNotFound })
	res, err := h.Execute(context.Background(), pingRequest(types.Params{"host": "127.0.0.1", "port": port}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Message, "127.0.0.1:"+port+": connected in") {
		t.Errorf("unexpected message %q", res.Message)
	}

	ln.Close()
	_, err = h.Execute(context.Background(), pingRequest(types.Params{"host": "127.0.0.1", "port": port}))
	if !errors.Is(err, runtime.ErrNetwork) {
		t.Errorf("expected ErrNetwork after listener closed, got %v", err)
	}
}
