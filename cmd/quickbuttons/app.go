package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/user/quickbuttons/internal/audio"
	"github.com/user/quickbuttons/internal/buttons"
	"github.com/user/quickbuttons/internal/chat"
	"github.com/user/quickbuttons/internal/config"
	"github.com/user/quickbuttons/internal/delivery"
	"github.com/user/quickbuttons/internal/executor"
	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/runtime/handlers"
	"github.com/user/quickbuttons/internal/scheduler"
	"github.com/user/quickbuttons/internal/timer"
	"github.com/user/quickbuttons/internal/types"
)

// historyModel picks the tokenizer used to budget chat history.
const historyModel = "gpt-4o"

// app is the wired core shared by the panel and the headless commands.
type app struct {
	store     *config.Store
	handlers  *runtime.Registry
	buttons   *buttons.Registry
	exec      *executor.Executor
	timers    *timer.Service
	player    *audio.Player
	history   *chat.History
	delivery  *delivery.Registry
	scheduler *scheduler.Scheduler
}

// openApp loads the config, installs logging to logOut and wires every
// component. Nothing is started.
func openApp(logOut io.Writer) (*app, error) {
	a := &app{delivery: delivery.NewRegistry()}

	backend, backendErr := audio.NewProcessBackend()
	if backendErr != nil {
		a.player = audio.New(audio.Unavailable{})
	} else {
		a.player = audio.New(backend)
	}
	a.history = chat.New(historyModel)
	a.timers = timer.New(timer.WithNotify(a.timerFinished))

	a.handlers = runtime.NewRegistry()
	handlers.Register(a.handlers, handlers.Deps{
		Prefs:   a.prefs,
		Player:  a.player,
		Timers:  a.timers,
		History: a.history,
	})

	a.store = config.NewStore(cfgPath, config.WithValidator(a.handlers))
	loaded, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(loaded.Doc, logOut)
	if backendErr != nil {
		slog.Warn("music buttons disabled", "error", backendErr)
	}
	reportLoad(loaded)

	a.buttons, err = buttons.New(a.store, loaded.Doc, a.handlers)
	if err != nil {
		// The registry is usable; only saving the normalised order failed.
		slog.Error("save normalised config failed", "path", cfgPath, "error", err)
	}
	a.exec = executor.New(a.buttons, a.handlers, executor.WithTimeouts(func() config.Timeouts {
		return a.document().Timeouts()
	}))
	a.scheduler = scheduler.New(a.buttons, func(id types.ButtonID) error {
		_, err := a.exec.Invoke(id)
		return err
	}, executor.ErrBusy)
	return a, nil
}

func reportLoad(l *config.Loaded) {
	switch {
	case l.Created:
		slog.Info("config created with defaults", "path", cfgPath)
	case l.Recovered():
		slog.Warn("config was corrupt, defaults restored", "path", cfgPath, "backup_path", l.BackupPath, "error", l.Cause)
	case l.Migrated:
		slog.Info("config migrated", "path", cfgPath, "from_version", l.FromVersion)
	}
	if l.PersistErr != nil {
		slog.Error("config not saved", "path", cfgPath, "error", l.PersistErr)
	}
	for _, w := range l.Warnings {
		slog.Warn("config warning", "button_id", w.ButtonID, "error", w.Err)
	}
}

// document is a copy of the current document, or the defaults while the
// config is still loading.
func (a *app) document() *config.Document {
	if a.buttons == nil {
		return config.Defaults()
	}
	return a.buttons.Document()
}

// prefs hands the handlers the current preferences on every execution.
func (a *app) prefs() handlers.Preferences { return a.document() }

// timerFinished runs on the timer goroutine for every completed segment.
func (a *app) timerFinished(ev timer.Event) {
	msg := "timer finished"
	if ev.Pomodoro && !ev.Final {
		msg = fmt.Sprintf("%s over, %s next (%d)", ev.Ended, ev.Next, ev.Cycle)
	}
	if a.exec != nil {
		a.exec.Notify(ev.ButtonID, msg)
	}

	doc := a.document()
	if sound := doc.TimerSound(); sound != "" {
		if err := a.player.Play(sound, doc.Volume()); err != nil {
			slog.Warn("timer sound failed", "button_id", ev.ButtonID, "path", sound, "error", err)
		}
	}
	a.notify(doc, ev.ButtonID, msg)
}

// notify sends msg about a button to the configured notification targets.
func (a *app) notify(doc *config.Document, id types.ButtonID, msg string) {
	targets := doc.NotifyTargets()
	if len(targets) == 0 {
		return
	}
	label := id.String()
	if b, err := a.buttons.Get(id); err == nil {
		label = b.DisplayName()
	}
	if err := a.delivery.Broadcast(targets, label+": "+msg); err != nil {
		slog.Warn("notification delivery failed", "button_id", id, "error", err)
	}
}

// reload re-reads the config file after an external edit.
func (a *app) reload() error {
	loaded, err := a.store.Load()
	if err != nil {
		return err
	}
	reportLoad(loaded)
	if err := a.buttons.Reload(loaded.Doc); err != nil {
		return err
	}
	a.scheduler.Reload()
	return nil
}

// shutdown stops every running action, then saves the document once more.
func (a *app) shutdown(ctx context.Context) {
	a.scheduler.Stop()
	if err := a.exec.Shutdown(ctx); err != nil {
		slog.Warn("executor shutdown incomplete", "error", err)
	}
	a.player.Stop()
	if err := a.store.Save(a.buttons.Document()); err != nil {
		slog.Error("shutdown save failed", "path", cfgPath, "error", err)
	}
}

// configDir is where the log, PID file and lookup tables live.
func configDir() string { return filepath.Dir(cfgPath) }
