package handlers

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

const (
	defaultPingHost  = "8.8.8.8"
	defaultPingCount = 3
	maxPingCount     = 20
)

// Ping measures round-trip time to a host with the system ping tool. When
// no ping binary exists it times a TCP connect to host:port instead.
type Ping struct {
	lookPath func(string) (string, error)
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	now      func() time.Time
}

// NewPing creates the ping handler.
func NewPing(lookPath func(string) (string, error)) *Ping {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var d net.Dialer
	return &Ping{lookPath: lookPath, dial: d.DialContext, now: time.Now}
}

func (h *Ping) Type() types.ButtonType { return types.TypePing }

func (h *Ping) Validate(p types.Params) error {
	if p.Has("host") && strings.ContainsAny(p.String("host"), " \t/") {
		return runtime.Invalid(types.TypePing, "host", "%q is not a host name or address", p.String("host"))
	}
	if p.Has("count") {
		if n, ok := p.Int("count"); !ok || n < 1 || n > maxPingCount {
			return runtime.Invalid(types.TypePing, "count", "must be an integer between 1 and %d", maxPingCount)
		}
	}
	if p.Has("port") {
		if n, ok := p.Int("port"); !ok || n < 1 || n > 65535 {
			return runtime.Invalid(types.TypePing, "port", "must be a TCP port")
		}
	}
	if _, err := timeoutParam(types.TypePing, p); err != nil {
		return err
	}
	return nil
}

func (h *Ping) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	p := req.Button.Params
	if err := h.Validate(p); err != nil {
		return runtime.Result{}, err
	}
	host := p.String("host")
	if host == "" {
		host = defaultPingHost
	}
	count := int64(defaultPingCount)
	if n, ok := p.Int("count"); ok {
		count = n
	}

	bin, err := h.lookPath("ping")
	if err != nil {
		port := int64(80)
		if n, ok := p.Int("port"); ok {
			port = n
		}
		return h.connect(ctx, req, net.JoinHostPort(host, strconv.FormatInt(port, 10)))
	}

	res, err := runProcess(ctx, req, processSpec{name: bin, args: pingArgs(int(count), host)})
	if err != nil {
		res.Message = host + " unreachable"
		return res, err
	}
	times := ParsePingTimes(res.Output)
	if len(times) == 0 {
		res.Message = host + " replied without timings"
		return res, nil
	}
	var sum float64
	for _, t := range times {
		sum += t
	}
	res.Message = fmt.Sprintf("%s: avg %.1f ms over %d replies", host, sum/float64(len(times)), len(times))
	return res, nil
}

// connect times a TCP handshake.
func (h *Ping) connect(ctx context.Context, req runtime.Request, addr string) (runtime.Result, error) {
	start := h.now()
	conn, err := h.dial(ctx, "tcp", addr)
	if err != nil {
		return runtime.Result{Message: addr + " unreachable"}, networkError(ctx, err)
	}
	conn.Close()
	msg := fmt.Sprintf("%s: connected in %.1f ms", addr, float64(h.now().Sub(start).Microseconds())/1000)
	req.Emit(msg + "\n")
	return runtime.Result{Output: msg, Message: msg}, nil
}

// ParsePingTimes extracts the per-reply times in milliseconds from ping
// output. Both "time=12.3 ms" and the Windows "time=12ms" / "time<1ms"
// forms are understood.
func ParsePingTimes(out string) []float64 {
	var times []float64
	for _, line := range strings.Split(out, "\n") {
		i := strings.Index(line, "time")
		if i < 0 || i+5 > len(line) {
			continue
		}
		rest := line[i+4:]
		switch rest[0] {
		case '<':
			times = append(times, 1)
		case '=':
			end := 1
			for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
				end++
			}
			if v, err := strconv.ParseFloat(rest[1:end], 64); err == nil {
				times = append(times, v)
			}
		}
	}
	return times
}
