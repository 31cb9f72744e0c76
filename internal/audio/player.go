// Package audio plays one sound at a time. Starting playback stops and
// releases whatever was playing before; there is never more than one
// session.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported audio codec")
	ErrNoPlayer         = errors.New("no audio player available")
	ErrNotPlaying       = errors.New("nothing playing")
)

// Stream is one started playback.
type Stream interface {
	// Stop ends playback and returns once the stream has released the
	// device. Stopping a finished stream is a no-op.
	Stop() error
	// Done is closed when playback ends for any reason.
	Done() <-chan struct{}
}

// VolumeSetter is implemented by streams that can change volume without
// restarting.
type VolumeSetter interface {
	SetVolume(v float64) error
}

// Backend starts playback of a file at a volume in [0,1] from an offset.
type Backend interface {
	Play(path string, volume float64, offset time.Duration) (Stream, error)
}

// Session describes the current playback.
type Session struct {
	// Owner names whoever started the session; empty for anonymous
	// playback such as the timer sound.
	Owner    string
	Path     string
	Volume   float64
	Duration time.Duration
	// Position is the playback offset when the snapshot was taken.
	Position time.Duration
}

type session struct {
	owner    string
	path     string
	volume   float64
	duration time.Duration
	offset   time.Duration
	started  time.Time
	stream   Stream
	gen      uint64
}

func (s *session) position(now time.Time) time.Duration {
	pos := s.offset + now.Sub(s.started)
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	return pos
}

// Player owns the single audio session.
type Player struct {
	backend Backend
	probe   func(path string) (Info, error)
	now     func() time.Time

	mu      sync.Mutex
	current *session
	gen     uint64
}

type Option func(*Player)

// WithProbe replaces the codec probe.
func WithProbe(fn func(path string) (Info, error)) Option {
	return func(p *Player) { p.probe = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Player) { p.now = now }
}

func New(backend Backend, opts ...Option) *Player {
	p := &Player{backend: backend, probe: Probe, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play starts anonymous playback of path at volume.
func (p *Player) Play(path string, volume float64) error {
	return p.PlayFor("", path, volume)
}

// PlayFor starts path at volume on behalf of owner. The previous session,
// if any, is stopped before the new one starts. PlayFor returns once
// playback has begun.
func (p *Player) PlayFor(owner, path string, volume float64) error {
	info, err := p.probe(path)
	if err != nil {
		return err
	}
	volume = clamp01(volume)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	stream, err := p.backend.Play(path, volume, 0)
	if err != nil {
		return fmt.Errorf("play %s: %w", path, err)
	}
	p.gen++
	s := &session{
		owner:    owner,
		path:     path,
		volume:   volume,
		duration: info.Duration,
		started:  p.now(),
		stream:   stream,
		gen:      p.gen,
	}
	p.current = s
	go p.release(s)
	slog.Debug("audio playing", "owner", owner, "path", path, "volume", volume, "duration", info.Duration)
	return nil
}

// release clears the session once its stream ends on its own.
func (p *Player) release(s *session) {
	<-s.stream.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.gen == s.gen {
		p.current = nil
	}
}

// Stop ends the current session. It is a no-op when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// StopOwned ends the current session only if owner started it. Otherwise
// nothing changes and ErrNotPlaying is returned.
func (p *Player) StopOwned(owner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.owner != owner {
		return ErrNotPlaying
	}
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.current == nil {
		return
	}
	if err := p.current.stream.Stop(); err != nil {
		slog.Warn("audio stop failed", "path", p.current.path, "error", err)
	}
	p.current = nil
}

// SetVolume changes the current session's volume. Backends that cannot
// change volume live are restarted at the current position.
func (p *Player) SetVolume(v float64) error {
	v = clamp01(v)
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.current
	if cur == nil {
		return nil
	}
	if vs, ok := cur.stream.(VolumeSetter); ok {
		if err := vs.SetVolume(v); err != nil {
			return fmt.Errorf("set volume: %w", err)
		}
		cur.volume = v
		return nil
	}

	now := p.now()
	pos := cur.position(now)
	if err := cur.stream.Stop(); err != nil {
		slog.Warn("audio stop failed", "path", cur.path, "error", err)
	}
	p.current = nil
	stream, err := p.backend.Play(cur.path, v, pos)
	if err != nil {
		return fmt.Errorf("restart %s: %w", cur.path, err)
	}
	p.gen++
	s := &session{
		owner:    cur.owner,
		path:     cur.path,
		volume:   v,
		duration: cur.duration,
		offset:   pos,
		started:  now,
		stream:   stream,
		gen:      p.gen,
	}
	p.current = s
	go p.release(s)
	return nil
}

// Current returns the active session.
func (p *Player) Current() (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Session{}, false
	}
	c := p.current
	return Session{
		Owner:    c.owner,
		Path:     c.path,
		Volume:   c.volume,
		Duration: c.duration,
		Position: c.position(p.now()),
	}, true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
