package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/quickbuttons/internal/buttons"
	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/scheduler"
	"github.com/user/quickbuttons/internal/types"
)

func init() {
	rootCmd.AddCommand(buttonCmd)
	buttonCmd.AddCommand(buttonListCmd, buttonAddCmd, buttonEditCmd, buttonRemoveCmd, buttonMoveCmd, buttonImportCmd)

	buttonAddCmd.Flags().String("type", "", "button type: "+typeList()+" (required)")
	_ = buttonAddCmd.MarkFlagRequired("type")
	for _, c := range []*cobra.Command{buttonAddCmd, buttonEditCmd} {
		c.Flags().String("label", "", "display label")
		c.Flags().String("icon", "", "icon name or emoji")
		c.Flags().String("schedule", "", "cron schedule expression")
		c.Flags().StringToString("param", nil, "type parameter as key=value (repeatable)")
	}
	buttonEditCmd.Flags().StringSlice("unset", nil, "parameter keys to remove")
	buttonImportCmd.Flags().String("label", "", "display label (default: file name)")
}

func typeList() string {
	names := make([]string, len(types.ButtonTypes))
	for i, t := range types.ButtonTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// plainNumber matches decimal literals only. Exponents, leading zeros,
// inf and nan stay text: "0755" is a mode, not 755, and a NaN could never
// be saved as JSON.
var plainNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// parseParams turns key=value flags into params. Plain decimal values are
// stored as numbers.
func parseParams(raw map[string]string) types.Params {
	p := make(types.Params, len(raw))
	for k, v := range raw {
		if plainNumber.MatchString(v) {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				p[k] = n
				continue
			}
		}
		p[k] = v
	}
	return p
}

func checkSchedule(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("schedule") {
		return nil, nil
	}
	s, _ := cmd.Flags().GetString("schedule")
	if s != "" {
		if err := scheduler.Validate(s); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", s, err)
		}
	}
	return &s, nil
}

// reportSaved prints msg and turns a validation-only failure into a warning:
// the button was stored but cannot run until it is fixed.
func reportSaved(cmd *cobra.Command, msg string, err error) error {
	var verr *runtime.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	if verr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: not executable until fixed: %v\n", verr)
	}
	return nil
}

var buttonCmd = &cobra.Command{
	Use:     "buttons",
	Aliases: []string{"button"},
	Short:   "Manage buttons",
}

var buttonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all buttons in panel order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}
		list := a.buttons.List()
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No buttons configured.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tORDER\tTYPE\tLABEL\tSCHEDULE\tPROBLEM")
		for _, b := range list {
			problem := ""
			if err := a.buttons.Problem(b.ID); err != nil {
				problem = err.Error()
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", b.ID, b.Order, b.Type, b.DisplayName(), b.Schedule, problem)
		}
		return w.Flush()
	},
}

var buttonAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a button at the end of the panel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, _ := cmd.Flags().GetString("type")
		t, err := types.ParseButtonType(typeName)
		if err != nil {
			return err
		}
		label, _ := cmd.Flags().GetString("label")
		icon, _ := cmd.Flags().GetString("icon")
		raw, _ := cmd.Flags().GetStringToString("param")
		schedule, err := checkSchedule(cmd)
		if err != nil {
			return err
		}

		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}
		b := types.Button{Type: t, Label: label, Icon: icon, Params: parseParams(raw)}
		if schedule != nil {
			b.Schedule = *schedule
		}
		id, err := a.buttons.Create(b)
		return reportSaved(cmd, fmt.Sprintf("Button %d added.", id), err)
	},
}

var buttonEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a button's label, icon, schedule or parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseButtonID(args[0])
		if err != nil {
			return err
		}
		schedule, err := checkSchedule(cmd)
		if err != nil {
			return err
		}

		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}
		current, err := a.buttons.Get(id)
		if err != nil {
			return err
		}

		e := buttons.Edit{Schedule: schedule}
		if cmd.Flags().Changed("label") {
			label, _ := cmd.Flags().GetString("label")
			e.Label = &label
		}
		if cmd.Flags().Changed("icon") {
			icon, _ := cmd.Flags().GetString("icon")
			e.Icon = &icon
		}
		raw, _ := cmd.Flags().GetStringToString("param")
		unset, _ := cmd.Flags().GetStringSlice("unset")
		if len(raw) > 0 || len(unset) > 0 {
			params := current.Params.Clone()
			if params == nil {
				params = types.Params{}
			}
			for k, v := range parseParams(raw) {
				params[k] = v
			}
			for _, k := range unset {
				delete(params, k)
			}
			e.Params = params
		}
		err = a.buttons.Edit(id, e)
		return reportSaved(cmd, fmt.Sprintf("Button %d updated.", id), err)
	},
}

var buttonRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a button",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseButtonID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}
		if err := a.buttons.Delete(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Button %d removed.\n", id)
		return nil
	},
}

var buttonMoveCmd = &cobra.Command{
	Use:   "move <id> <position>",
	Short: "Move a button to a zero-based position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseButtonID(args[0])
		if err != nil {
			return err
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[1], err)
		}
		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}
		if err := a.buttons.Reorder(id, pos); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Button %d moved to position %d.\n", id, pos)
		return nil
	},
}

var buttonImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Create buttons from files, choosing the type from each file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}

		sort.Strings(args)
		var errs []error
		for _, path := range args {
			b, err := buttons.DetectFromFile(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if label != "" && len(args) == 1 {
				b.Label = label
			}
			id, err := a.buttons.Create(b)
			if err := reportSaved(cmd, fmt.Sprintf("Button %d added (%s) from %s.", id, b.Type, path), err); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	},
}
