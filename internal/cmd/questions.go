package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotcommander/cosmos-agent/internal/present"
)

func newQuestionsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List the questions that can be asked with --question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			styles := present.StdoutStyles()
			w := cmd.OutOrStdout()
			for i, q := range rt.cfg.Questions {
				marker := " "
				if i == rt.cfg.Question {
					marker = styles.Flag.Render("*")
				}
				fmt.Fprintf(w, "%s %s %s\n", marker, styles.ID.Render(fmt.Sprintf("%2d", i)), q)
			}
			return nil
		},
	}
}
