package cmd

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/cosmos-agent/internal/present"
)

func useLine(cmd *cobra.Command) string {
	appName := cmd.CommandPath()
	if present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		appName = present.MakeGradientText(present.StdoutStyles().AppName, appName)
	}

	args := "[OPTIONS]"
	if cmd.HasAvailableSubCommands() {
		args = "[COMMAND] [OPTIONS]"
	}
	return fmt.Sprintf("%s %s", appName, present.StdoutStyles().CliArgs.Render(args))
}

func usageFunc(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	styles := present.StdoutStyles()

	fmt.Fprintf(w, "Usage:\n  %s\n", useLine(cmd))

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, "\nCommands:")
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			fmt.Fprintf(w, "  %-22s %s\n", styles.Flag.Render(sub.Name()), styles.FlagDesc.Render(sub.Short))
		}
	}

	if cmd.HasAvailableFlags() {
		fmt.Fprintln(w, "\nOptions:")
		printFlags(w, styles, cmd.Flags())
	}

	if cmd.HasExample() {
		fmt.Fprintln(w, "\nExample:")
		if code, ok := examples[cmd.Example]; ok {
			fmt.Fprintf(w, "  %s\n  %s\n", styles.Comment.Render("# "+cmd.Example), cheapHighlighting(styles, code))
		} else {
			fmt.Fprintln(w, cheapHighlighting(styles, cmd.Example))
		}
	}

	return nil
}

func printFlags(w io.Writer, styles present.Styles, flags *flag.FlagSet) {
	flags.VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Fprintf(
				w,
				"  %-44s %s\n",
				styles.Flag.Render("--"+f.Name),
				styles.FlagDesc.Render(f.Usage),
			)
			return
		}
		fmt.Fprintf(
			w,
			"  %s%s %-40s %s\n",
			styles.Flag.Render("-"+f.Shorthand),
			styles.FlagComma,
			styles.Flag.Render("--"+f.Name),
			styles.FlagDesc.Render(f.Usage),
		)
	})
}
