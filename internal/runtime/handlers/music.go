package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/quickbuttons/internal/audio"
	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
)

// Music plays an audio file through the shared player. Execute returns once
// playback has started.
type Music struct {
	player *audio.Player
	prefs  PrefsFunc
}

// NewMusic creates the music handler.
func NewMusic(player *audio.Player, prefs PrefsFunc) *Music {
	return &Music{player: player, prefs: orDefault(prefs)}
}

func (m *Music) Type() types.ButtonType { return types.TypeMusic }

func (m *Music) Validate(p types.Params) error {
	path := p.String("file")
	if strings.TrimSpace(path) == "" {
		return runtime.Invalid(types.TypeMusic, "file", "is required")
	}
	if !audio.Playable(path) {
		return runtime.Invalid(types.TypeMusic, "file", "extension %q is not one of %s",
			filepath.Ext(path), strings.Join(audio.Extensions(), ", "))
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return runtime.Invalid(types.TypeMusic, "file", "does not exist")
	}
	if p.Has("volume") {
		v, ok := p.Float("volume")
		if !ok || v < 0 || v > 1 {
			return runtime.Invalid(types.TypeMusic, "volume", "must be between 0 and 1")
		}
	}
	return nil
}

func (m *Music) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	p := req.Button.Params
	path := p.String("file")
	if _, err := os.Stat(path); err != nil {
		return runtime.Result{}, fmt.Errorf("%w: %s", runtime.ErrNotFound, path)
	}
	if err := m.Validate(p); err != nil {
		return runtime.Result{}, err
	}
	volume := m.prefs().Volume()
	if v, ok := p.Float("volume"); ok {
		volume = v
	}

	if err := m.player.PlayFor(musicOwner(req.Button.ID), path, volume); err != nil {
		switch {
		case errors.Is(err, audio.ErrUnsupportedCodec):
			return runtime.Result{}, fmt.Errorf("%w: %w", runtime.ErrUnsupported, err)
		case errors.Is(err, audio.ErrNoPlayer):
			return runtime.Result{}, fmt.Errorf("%w: %w", runtime.ErrSpawnFailed, err)
		case errors.Is(err, os.ErrNotExist):
			return runtime.Result{}, fmt.Errorf("%w: %w", runtime.ErrNotFound, err)
		}
		return runtime.Result{}, err
	}
	return runtime.Result{Message: "playing " + filepath.Base(path)}, nil
}

// CancelButton stops the sound this button started. Music has no in-flight
// execution once playback has started, so cancelling the button means
// stopping its sound. Playback started by anything else is left alone and
// audio.ErrNotPlaying is returned.
func (m *Music) CancelButton(id types.ButtonID) error {
	return m.player.StopOwned(musicOwner(id))
}

func musicOwner(id types.ButtonID) string { return "button:" + id.String() }
