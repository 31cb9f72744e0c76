package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/user/quickbuttons/internal/control"
	"github.com/user/quickbuttons/internal/lookup"
	"github.com/user/quickbuttons/internal/panel"
)

const (
	timerInterval   = 250 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

// runPanel starts the interactive panel. The terminal belongs to the panel,
// so the log goes to quickbuttons.log next to the config.
func runPanel(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(configDir(), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(configDir(), "quickbuttons.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	a, err := openApp(logFile)
	if err != nil {
		return err
	}
	doc := a.document()

	tables, err := lookup.Load(configDir())
	if err != nil {
		slog.Warn("theme or translation file ignored", "error", err)
		tables = lookup.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.timers.Run(ctx, timerInterval)
	a.scheduler.Start()

	if httpCfg := doc.HTTP(); httpCfg.Enabled {
		srv := control.NewServer(a.buttons, a.exec, a.timers)
		go func() {
			if err := srv.ListenAndServe(ctx, httpCfg.Listen); err != nil {
				slog.Error("control API stopped", "error", err)
			}
		}()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config watch disabled", "error", err)
		watcher = nil
	} else {
		defer watcher.Close()
		if err := watcher.Add(configDir()); err != nil {
			slog.Warn("config watch disabled", "path", configDir(), "error", err)
		}
	}

	m := panel.New(panel.Deps{
		Buttons:    a.buttons,
		Exec:       a.exec,
		Timers:     a.timers,
		Reload:     a.reload,
		Watcher:    watcher,
		ConfigPath: cfgPath,
		Theme:      tables,
		Translator: tables,
		ThemeName:  doc.Theme(),
		Locale:     doc.Language(),
	})
	slog.Info("panel started", "path", cfgPath, "buttons", a.buttons.Len())

	_, runErr := tea.NewProgram(m, tea.WithAltScreen()).Run()

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	a.shutdown(shutdownCtx)
	slog.Info("panel stopped")
	return runErr
}
