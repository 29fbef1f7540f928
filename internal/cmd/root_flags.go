package cmd

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/exp/ordered"
	"github.com/spf13/cobra"

	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/config"
	"github.com/dotcommander/cosmos-agent/internal/present"
	"github.com/dotcommander/cosmos-agent/internal/storage"
)

var helpText = map[string]string{
	"question":          "Index of the question to ask (see the questions command)",
	"model":             "Model deployment to bind the agent to (MODEL_DEPLOYMENT_NAME)",
	"agent-name":        "Name of the created agent",
	"delete-agent":      "Delete the agent once the conversation is printed",
	"preflight":         "List the MCP server tools before creating the agent",
	"raw":               "Print assistant answers without markdown formatting",
	"quiet":             "Quiet mode (hide progress output)",
	"debug":             "Enable debug logs",
	"no-ledger":         "Do not record the agent and transcript locally",
	"credential":        "Credential source: " + strings.Join(agents.CredentialKinds, ", "),
	"token-cmd":         "Command printing a bearer token (with --credential command)",
	"max-retries":       "Maximum number of retries for a service request",
	"poll-interval":     "Wait between two run status checks",
	"poll-max-interval": "Upper bound of the wait between status checks",
	"poll-multiplier":   "Growth factor of the wait after each status check",
	"poll-timeout":      "Give up and cancel the run after this long (0 waits forever)",
	"word-wrap":         "Wrap formatted output at specific width",
	"theme":             "Theme to use in the forms; valid choices are charm, catppuccin, dracula, and base16",
	"version":           "Show version and exit",
}

func flagDesc(name string) string {
	return present.StdoutStyles().FlagDesc.Render(helpText[name])
}

func initRootFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.IntVarP(&cfg.Question, "question", "n", cfg.Question, flagDesc("question"))
	flags.StringVarP(&cfg.Model, "model", "m", cfg.Model, flagDesc("model"))
	flags.StringVar(&cfg.AgentName, "agent-name", cfg.AgentName, flagDesc("agent-name"))
	flags.BoolVarP(&cfg.DeleteAgent, "delete-agent", "d", cfg.DeleteAgent, flagDesc("delete-agent"))
	flags.BoolVar(&cfg.Preflight, "preflight", cfg.Preflight, flagDesc("preflight"))
	flags.BoolVar(&cfg.NoLedger, "no-ledger", cfg.NoLedger, flagDesc("no-ledger"))
	flags.StringVar(&cfg.Credential, "credential", cfg.Credential, flagDesc("credential"))
	flags.StringVar(&cfg.TokenCmd, "token-cmd", cfg.TokenCmd, flagDesc("token-cmd"))
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, flagDesc("max-retries"))
	flags.Var(newDurationFlag(cfg.PollInterval, &cfg.PollInterval), "poll-interval", flagDesc("poll-interval"))
	flags.Var(newDurationFlag(cfg.PollMaxInterval, &cfg.PollMaxInterval), "poll-max-interval", flagDesc("poll-max-interval"))
	flags.Float64Var(&cfg.PollMultiplier, "poll-multiplier", cfg.PollMultiplier, flagDesc("poll-multiplier"))
	flags.Var(newDurationFlag(cfg.PollTimeout, &cfg.PollTimeout), "poll-timeout", flagDesc("poll-timeout"))
	flags.BoolVarP(&cfg.Version, "version", "v", false, flagDesc("version"))
	flags.SortFlags = false

	flags.BoolVar(&memprofile, "memprofile", false, "Write memory profiles to CWD")
	_ = flags.MarkHidden("memprofile")

	_ = cmd.RegisterFlagCompletionFunc("question", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		out := make([]string, 0, len(cfg.Questions))
		for i, q := range cfg.Questions {
			out = append(out, strconv.Itoa(i)+"\t"+q)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("credential", cobra.FixedCompletions(agents.CredentialKinds, cobra.ShellCompDirectiveNoFileComp))
}

// initPersistentFlags registers the flags every subcommand understands.
func initPersistentFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, flagDesc("quiet"))
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, flagDesc("debug"))
	flags.BoolVarP(&cfg.Raw, "raw", "r", cfg.Raw, flagDesc("raw"))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, flagDesc("word-wrap"))
	flags.StringVar(&cfg.Theme, "theme", ordered.First(cfg.Theme, "charm"), flagDesc("theme"))
}

// completeLedgerIDs completes agent and run IDs recorded in the ledger.
func completeLedgerIDs(cfg *config.Config) cobra.CompletionFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if cfg.CachePath == "" {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		db, err := storage.Open(filepath.Join(cfg.CachePath, ledgerDir))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		defer db.Close() //nolint:errcheck
		return db.Completions(toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}
