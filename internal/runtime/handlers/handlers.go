// Package handlers implements one runtime.Handler per button type.
package handlers

import (
	"net/http"

	"github.com/user/quickbuttons/internal/audio"
	"github.com/user/quickbuttons/internal/chat"
	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/timer"
)

// Deps are the collaborators the handlers delegate to.
type Deps struct {
	Prefs   PrefsFunc
	Player  *audio.Player
	Timers  *timer.Service
	History *chat.History
	// Optional overrides.
	Opener     Opener
	HTTPClient *http.Client
	LLM        ProviderFactory
}

// Register adds every handler to reg.
func Register(reg *runtime.Registry, d Deps) {
	reg.Register(NewWebsite(d.Opener))
	reg.Register(NewShell())
	reg.Register(NewPython(d.Prefs))
	reg.Register(NewMusic(d.Player, d.Prefs))
	reg.Register(NewPost(d.HTTPClient))
	reg.Register(NewLLM(d.History, d.LLM))
	reg.Register(NewTimer(d.Timers))
	reg.Register(NewApp())
	reg.Register(NewPing(nil))
	reg.Register(NewHTTPTest(d.HTTPClient))
}
