package cmd

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	timeago "github.com/caarlos0/timea.go"
	"github.com/spf13/cobra"

	"github.com/dotcommander/cosmos-agent/internal/agent"
	"github.com/dotcommander/cosmos-agent/internal/errs"
	"github.com/dotcommander/cosmos-agent/internal/present"
	"github.com/dotcommander/cosmos-agent/internal/storage"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse the transcripts of previous runs",
	}

	historyCmd.AddCommand(newHistoryListCmd(rt))
	historyCmd.AddCommand(newHistoryShowCmd(rt))
	historyCmd.AddCommand(newHistoryDeleteCmd(rt))

	return historyCmd
}

func newHistoryListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			store, err := openLocalStore(rt.cfg.CachePath)
			if err != nil {
				return errs.Wrap(err, "Could not open the transcript cache.")
			}
			defer store.Close() //nolint:errcheck

			reports, err := store.reports()
			if err != nil {
				return errs.Wrap(err, "Could not list transcripts.")
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No transcripts found.")
				return nil
			}
			printReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}
}

func newHistoryShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "show [run-or-agent-id]",
		Short:             "Print a saved transcript; defaults to the latest run",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeLedgerIDs(&rt.cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			store, err := openLocalStore(rt.cfg.CachePath)
			if err != nil {
				return errs.Wrap(err, "Could not open the transcript cache.")
			}
			defer store.Close() //nolint:errcheck

			var in string
			if len(args) == 1 {
				in = args[0]
			}
			runID, err := store.resolveRun(in)
			if err != nil {
				return errs.Wrap(err, "Couldn't find the transcript.")
			}
			report, err := store.Transcripts.Read(runID)
			if err != nil {
				return errs.Wrap(err, "Couldn't read the transcript.")
			}
			if err := present.PrintReport(cmd.OutOrStdout(), present.StdoutStyles(), report, present.ReportOptions{
				Markdown: present.IsOutputTTY() && !rt.cfg.Raw,
				WordWrap: rt.cfg.WordWrap,
			}); err != nil {
				return errs.Wrap(err, "Could not print the conversation.")
			}
			return nil
		},
	}
}

func newHistoryDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "delete <run-or-agent-id> [more...]",
		Short:             "Delete saved transcripts",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeLedgerIDs(&rt.cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			store, err := openLocalStore(rt.cfg.CachePath)
			if err != nil {
				return errs.Wrap(err, "Could not open the transcript cache.")
			}
			defer store.Close() //nolint:errcheck

			for _, in := range args {
				if in == "" {
					continue
				}
				runID, err := store.resolveRun(in)
				if err != nil {
					return errs.Wrap(err, "Couldn't find the transcript to delete.")
				}
				if err := store.Transcripts.Delete(runID); err != nil {
					return errs.Wrap(err, "Couldn't delete the transcript.")
				}
				if !rt.cfg.Quiet {
					present.PrintConfirmation(cmd.OutOrStdout(), "DELETED", present.StdoutStyles().ID.Render(runID))
				}
			}
			return nil
		},
	}
}

// resolveRun maps user input to the run ID of a saved transcript. Empty
// input picks the newest ledger entry with a transcript. Otherwise a full
// run ID, a unique prefix of a saved run ID and finally a ledger match on
// the agent are tried in that order.
func (s *localStore) resolveRun(in string) (string, error) {
	if in == "" {
		for _, rec := range s.DB.List() {
			if rec.RunID != "" && s.Transcripts.Exists(rec.RunID) {
				return rec.RunID, nil
			}
		}
		return "", storage.ErrNoMatches
	}
	if s.Transcripts.Exists(in) {
		return in, nil
	}
	if len(in) < storage.MinPrefixLen {
		return "", fmt.Errorf("%w: %s", storage.ErrNoMatches, in)
	}

	ids, err := s.Transcripts.RunIDs()
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, in) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
	default:
		return "", fmt.Errorf("%w: %s", storage.ErrManyMatches, in)
	}

	rec, err := s.DB.Find(in)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	if rec.RunID == "" || !s.Transcripts.Exists(rec.RunID) {
		return "", fmt.Errorf("%w: no transcript for %s", storage.ErrNoMatches, rec.AgentID)
	}
	return rec.RunID, nil
}

// reports loads every saved transcript, newest run first. Unreadable
// transcripts are skipped.
func (s *localStore) reports() ([]agent.Report, error) {
	ids, err := s.Transcripts.RunIDs()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	reports := make([]agent.Report, 0, len(ids))
	for _, id := range ids {
		report, err := s.Transcripts.Read(id)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}
	slices.SortStableFunc(reports, func(a, b agent.Report) int {
		return cmp.Compare(b.Run.CreatedAt, a.Run.CreatedAt)
	})
	return reports, nil
}

func printReports(w io.Writer, reports []agent.Report) {
	styles := present.StdoutStyles()
	for _, report := range reports {
		when := "-"
		if t := report.Run.CreatedAt.Time(); !t.IsZero() {
			when = timeago.Of(t)
		}
		_, _ = fmt.Fprintf(
			w,
			"%s\t%s\t%s\t%s\n",
			styles.ID.Render(report.Run.ID),
			present.StatusStyle(styles, report.Run.Status).Render(string(report.Run.Status)),
			report.Question,
			styles.Timeago.Render(when),
		)
	}
}
