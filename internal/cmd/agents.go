package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/atotto/clipboard"
	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/errs"
	"github.com/dotcommander/cosmos-agent/internal/present"
	"github.com/dotcommander/cosmos-agent/internal/storage"
)

func newAgentsCmd(rt *runtime) *cobra.Command {
	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage the agents created by previous runs",
	}

	agentsCmd.AddCommand(newAgentsListCmd(rt))
	agentsCmd.AddCommand(newAgentsDeleteCmd(rt))
	agentsCmd.AddCommand(newAgentsPruneCmd(rt))

	return agentsCmd
}

func newAgentsListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			store, err := openLocalStore(rt.cfg.CachePath)
			if err != nil {
				return errs.Wrap(err, "Could not open the agent ledger.")
			}
			defer store.Close() //nolint:errcheck

			records := store.DB.List()
			if len(records) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No agents found.")
				return nil
			}
			if present.Interactive() && !rt.cfg.Raw {
				return selectFromList(cmd.OutOrStdout(), rt.cfg.Theme, records)
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func newAgentsDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "delete <agent-or-run-id> [more...]",
		Short:             "Delete agents remotely and drop them from the ledger",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeLedgerIDs(&rt.cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			store, err := openLocalStore(rt.cfg.CachePath)
			if err != nil {
				return errs.Wrap(err, "Could not open the agent ledger.")
			}
			defer store.Close() //nolint:errcheck

			records := make([]storage.Record, 0, len(args))
			for _, in := range args {
				rec, err := store.DB.Find(in)
				if err != nil {
					return errs.Wrap(err, "Couldn't find the agent to delete.")
				}
				records = append(records, *rec)
			}
			return rt.deleteAgents(cmd.Context(), store, records, cmd.OutOrStdout())
		},
	}
}

func newAgentsPruneCmd(rt *runtime) *cobra.Command {
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete every recorded agent older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if rt.cfg.OlderThan <= 0 {
				return errs.Wrap(errs.UserErrorf("missing --older-than"), "Could not delete old agents.")
			}
			store, err := openLocalStore(rt.cfg.CachePath)
			if err != nil {
				return errs.Wrap(err, "Could not open the agent ledger.")
			}
			defer store.Close() //nolint:errcheck

			records := store.DB.ListOlderThan(rt.cfg.OlderThan)
			if len(records) == 0 {
				if !rt.cfg.Quiet {
					fmt.Fprintln(cmd.ErrOrStderr(), "No agents found.")
				}
				return nil
			}

			if !rt.cfg.Quiet && !rt.cfg.Yes {
				printRecords(cmd.OutOrStdout(), records)
				if !present.Interactive() {
					fmt.Fprintln(cmd.ErrOrStderr())
					//nolint:wrapcheck // user-facing guidance error
					return errs.UserErrorf(
						"To delete the agents above, run: %s",
						strings.Join(append(os.Args, "--yes"), " "),
					)
				}
				var confirm bool
				if err := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Delete agents older than %s?", rt.cfg.OlderThan)).
						Description(fmt.Sprintf("This will delete all the %d agents listed above from the project.", len(records))).
						Value(&confirm),
				)).WithTheme(themeFrom(rt.cfg.Theme)).Run(); err != nil {
					return errs.Wrap(err, "Couldn't delete old agents.")
				}
				if !confirm {
					//nolint:wrapcheck // user-facing abort
					return errs.UserErrorf("Aborted by user")
				}
			}
			return rt.deleteAgents(cmd.Context(), store, records, cmd.OutOrStdout())
		},
	}
	pruneCmd.Flags().Var(newDurationFlag(rt.cfg.OlderThan, &rt.cfg.OlderThan), "older-than", "Duration to prune; e.g. 24h, 7d")
	pruneCmd.Flags().BoolVarP(&rt.cfg.Yes, "yes", "y", false, "Do not ask for confirmation")
	return pruneCmd
}

// deleteAgents deletes each agent from the project it was created in and
// drops its ledger record. Agents already gone remotely are only dropped.
func (rt *runtime) deleteAgents(ctx context.Context, store *localStore, records []storage.Record, w io.Writer) error {
	cred, err := rt.newCredential(rt.cfg)
	if err != nil {
		return err
	}
	clients := map[string]*agents.Client{}
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	for _, rec := range records {
		endpoint := ordered.First(rec.Endpoint, rt.cfg.Endpoint)
		client, ok := clients[endpoint]
		if !ok {
			client, err = rt.newClient(endpoint, cred)
			if err != nil {
				return err
			}
			clients[endpoint] = client
		}

		if err := client.DeleteAgent(ctx, rec.AgentID); err != nil {
			var respErr *azcore.ResponseError
			if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusNotFound {
				return errs.Remote(err, "delete agent "+rec.AgentID)
			}
			log.Debug(ctx, log.KV{K: "msg", V: "agent already deleted"}, log.KV{K: "agent", V: rec.AgentID})
		}
		if err := store.DB.Delete(rec.AgentID); err != nil {
			return errs.Wrap(err, "Couldn't update the agent ledger.")
		}
		if !rt.cfg.Quiet {
			present.PrintConfirmation(w, "DELETED", present.StdoutStyles().ID.Render(rec.AgentID))
		}
	}
	return nil
}

func makeOptions(records []storage.Record) []huh.Option[string] {
	styles := present.StdoutStyles()
	opts := make([]huh.Option[string], 0, len(records))
	for _, rec := range records {
		timea := styles.Timeago.Render(timeago.Of(rec.CreatedAt))
		left := styles.ID.Render(storage.ShortID(rec.AgentID))
		right := styles.List.Render(rec.Question, timea)
		if rec.Status != "" {
			right += present.StatusStyle(styles, agents.RunStatus(rec.Status)).Render(rec.Status)
		}
		if rec.Model != "" {
			right += styles.Comment.Render(" (" + rec.Model + ")")
		}
		opts = append(opts, huh.NewOption(left+" "+right, rec.AgentID))
	}
	return opts
}

func selectFromList(w io.Writer, theme string, records []storage.Record) error {
	var selected string
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Agents").
				Value(&selected).
				Options(makeOptions(records)...),
		),
	).WithTheme(themeFrom(theme)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return errs.Wrap(err, "Could not show the agent list.")
	}

	_ = clipboard.WriteAll(selected)
	termenv.Copy(selected)
	present.PrintConfirmation(w, "COPIED", selected)

	styles := present.StdoutStyles()
	fmt.Fprintln(w, styles.Comment.Render("You can use this agent ID with the following commands:"))
	suggestions := []string{
		"cosmos-agent agents delete " + selected,
		"cosmos-agent history show " + selected,
	}
	for _, s := range suggestions {
		fmt.Fprintf(w, "  %s\n", styles.InlineCode.Render(s))
	}
	return nil
}

func printRecords(w io.Writer, records []storage.Record) {
	styles := present.StdoutStyles()
	for _, rec := range records {
		_, _ = fmt.Fprintf(
			w,
			"%s\t%s\t%s\t%s\n",
			styles.ID.Render(rec.AgentID),
			rec.Question,
			ordered.First(rec.Status, "-"),
			styles.Timeago.Render(timeago.Of(rec.CreatedAt)),
		)
	}
}
