package audio

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// command describes how to drive one external player.
type command struct {
	name string
	seek bool
	args func(path string, volume float64, offset time.Duration) []string
}

var commands = []command{
	{
		name: "ffplay",
		seek: true,
		args: func(path string, v float64, off time.Duration) []string {
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet",
				"-volume", strconv.Itoa(int(v * 100)),
				"-ss", strconv.FormatFloat(off.Seconds(), 'f', 3, 64), path}
		},
	},
	{
		name: "mpv",
		seek: true,
		args: func(path string, v float64, off time.Duration) []string {
			return []string{"--no-video", "--really-quiet",
				"--volume=" + strconv.Itoa(int(v*100)),
				"--start=" + strconv.FormatFloat(off.Seconds(), 'f', 3, 64), path}
		},
	},
	{
		name: "paplay",
		args: func(path string, v float64, _ time.Duration) []string {
			return []string{"--volume=" + strconv.Itoa(int(v*65536)), path}
		},
	},
	{
		name: "afplay",
		args: func(path string, v float64, _ time.Duration) []string {
			return []string{"-v", strconv.FormatFloat(v, 'f', 2, 64), path}
		},
	},
}

// ProcessBackend plays files through the first external player found on
// PATH.
type ProcessBackend struct {
	cmd  command
	path string
}

// NewProcessBackend picks a player, or fails with ErrNoPlayer.
func NewProcessBackend() (*ProcessBackend, error) {
	return newProcessBackend(exec.LookPath)
}

func newProcessBackend(lookPath func(string) (string, error)) (*ProcessBackend, error) {
	for _, c := range commands {
		if p, err := lookPath(c.name); err == nil {
			return &ProcessBackend{cmd: c, path: p}, nil
		}
	}
	return nil, ErrNoPlayer
}

// Name is the selected player.
func (b *ProcessBackend) Name() string { return b.cmd.name }

func (b *ProcessBackend) Play(path string, volume float64, offset time.Duration) (Stream, error) {
	if !b.cmd.seek {
		offset = 0
	}
	cmd := exec.Command(b.path, b.cmd.args(path, volume, offset)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", b.cmd.name, err)
	}
	s := &processStream{cmd: cmd, done: make(chan struct{})}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

type processStream struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	once    sync.Once
}

func (s *processStream) Done() <-chan struct{} { return s.done }

func (s *processStream) Stop() error {
	var err error
	s.once.Do(func() {
		select {
		case <-s.done:
			return
		default:
		}
		if kerr := s.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = kerr
		}
		<-s.done
	})
	return err
}

// Unavailable is a Backend for systems without any player; every Play fails
// with ErrNoPlayer.
type Unavailable struct{}

func (Unavailable) Play(string, float64, time.Duration) (Stream, error) {
	return nil, ErrNoPlayer
}
