package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/quickbuttons/internal/config"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "quickbuttons",
	Short: "A panel of buttons that run scripts, requests, timers and chats",
	Long: `QuickButtons shows a panel of configurable buttons. Each button opens a
website, runs a shell command or Python script, plays music, sends a POST
request, starts a timer or talks to an LLM.

Without a subcommand the interactive panel starts.`,
	Args: cobra.NoArgs,
	// Flag and argument errors print usage; errors from a running command
	// do not.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
	},
	RunE: runPanel,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging installs the default slog handler. The --log-level flag wins
// over QUICKBUTTONS_LOG_LEVEL, which wins over the stored preference.
func setupLogging(doc *config.Document, w io.Writer) {
	lvl := logLevel
	if lvl == "" {
		lvl = doc.LogLevel()
	}
	var level slog.Level
	switch strings.ToLower(lvl) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
