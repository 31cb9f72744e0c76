package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/quickbuttons/internal/control"
	"github.com/user/quickbuttons/internal/executor"
	"github.com/user/quickbuttons/internal/telegram"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run buttons headless: timers, schedules, control API and Telegram",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func pidPath() string { return filepath.Join(configDir(), "quickbuttons.pid") }

func writePIDFile() (string, error) {
	path := pidPath()
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	doc := a.document()

	pidFile, err := writePIDFile()
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SIGHUP re-executes the binary once everything has shut down.
	restart := make(chan os.Signal, 1)
	signal.Notify(restart, syscall.SIGHUP)
	defer signal.Stop(restart)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var restarting atomic.Bool
	go func() {
		select {
		case <-restart:
			slog.Info("received SIGHUP, restarting")
			restarting.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.timers.Run(gctx, timerInterval)
		return nil
	})

	a.scheduler.Start()
	slog.Info("scheduler started", "scheduled", len(a.scheduler.Scheduled()))

	if httpCfg := doc.HTTP(); httpCfg.Enabled {
		srv := control.NewServer(a.buttons, a.exec, a.timers)
		g.Go(func() error {
			if err := srv.ListenAndServe(gctx, httpCfg.Listen); err != nil {
				return fmt.Errorf("control API: %w", err)
			}
			return nil
		})
	}

	if tg := doc.Telegram(); tg.Token != "" {
		adapter, err := telegram.New(tg.Token, tg.ChatID, a.buttons, a.exec, a.timers)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		a.delivery.Register(telegram.Prefix, adapter.SendTo)
		g.Go(func() error { return adapter.Start(gctx) })
		slog.Info("telegram adapter started")
	} else {
		slog.Info("telegram adapter disabled (no token)")
	}

	g.Go(func() error {
		reportOutbox(gctx, a)
		return nil
	})

	slog.Info("quickbuttons serving",
		"path", cfgPath,
		"buttons", a.buttons.Len(),
		"pid_file", pidFile,
	)

	runErr := g.Wait()

	shutdownCtx, stopShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopShutdown()
	a.shutdown(shutdownCtx)

	if restarting.Load() {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		os.Remove(pidFile)
		return syscall.Exec(execPath, os.Args, os.Environ())
	}
	slog.Info("shutting down")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// reportOutbox is the headless outbox consumer: it logs results and sends
// failures and notices to the notification targets.
func reportOutbox(ctx context.Context, a *app) {
	ob := a.exec.Outbox()
	for {
		ev, err := ob.Next(ctx)
		if err != nil {
			return
		}
		switch ev.Kind {
		case executor.EventDone:
			if ev.Record.Status == executor.StatusFailed {
				a.notify(a.document(), ev.ButtonID, ev.Record.Summary())
			}
		case executor.EventNotice:
			// Timer completions were already sent by timerFinished.
			slog.Info("button notice", "button_id", ev.ButtonID, "notice", ev.Notice)
		}
	}
}
