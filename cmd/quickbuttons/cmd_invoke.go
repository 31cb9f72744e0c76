package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/quickbuttons/internal/executor"
	"github.com/user/quickbuttons/internal/types"
)

func init() {
	rootCmd.AddCommand(invokeCmd)
	invokeCmd.Flags().String("input", "", "text passed to the button (LLM prompt, ...)")
	invokeCmd.Flags().StringToString("var", nil, "value for a {custom:name} wildcard, as name=value")
}

var invokeCmd = &cobra.Command{
	Use:   "invoke <id>",
	Short: "Run one button and stream its output",
	Long: `Run one button, streaming its output to stdout. The exit status is 0 when
the button succeeds and 1 otherwise. Ctrl-C cancels the running action.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseButtonID(args[0])
		if err != nil {
			return err
		}
		input, _ := cmd.Flags().GetString("input")
		vars, _ := cmd.Flags().GetStringToString("var")

		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		var last string
		emit := func(s string) {
			if s != "" {
				fmt.Fprint(out, s)
				last = s
			}
		}
		h, err := a.exec.Invoke(id,
			executor.WithInput(input),
			executor.WithVars(vars),
			executor.WithProgress(emit),
		)
		if err != nil {
			return err
		}

		rec, err := h.Wait(ctx)
		if errors.Is(err, context.Canceled) {
			_ = a.exec.Cancel(id)
			rec, err = h.Wait(context.Background())
		}
		if err != nil {
			return err
		}

		if last == "" {
			emit(rec.Result.Output)
		}
		if last != "" && !strings.HasSuffix(last, "\n") {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", rec.Label, rec.Summary())
		if rec.Status != executor.StatusSucceeded {
			return fmt.Errorf("%s %s", rec.Label, rec.Status)
		}
		return nil
	},
}
