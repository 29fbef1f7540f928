package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/dotcommander/cosmos-agent/internal/agent"
	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/config"
	"github.com/dotcommander/cosmos-agent/internal/errs"
	"github.com/dotcommander/cosmos-agent/internal/mcp"
	"github.com/dotcommander/cosmos-agent/internal/present"
)

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error

	// newCredential and transport are replaced in tests.
	newCredential func(config.Config) (azcore.TokenCredential, error)
	transport     policy.Transporter
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	return newRootCmd(&runtime{
		build:         normalizeBuildInfo(build),
		cfg:           cfg,
		cfgErr:        cfgErr,
		newCredential: credentialFromConfig,
	})
}

func newRootCmd(rt *runtime) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rootCmd := &cobra.Command{
		Use:           "cosmos-agent",
		Short:         "Ask an Azure AI Foundry agent about your Cosmos DB data through MCP.",
		Long:          "Creates an agent bound to a Cosmos DB MCP server, asks it one question and prints the run steps and the conversation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		Example:       randomExample(),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(rt.logContext(cmd.Context(), cmd.ErrOrStderr()))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runConversation(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initRootFlags(rootCmd, &rt.cfg)
	initPersistentFlags(rootCmd, &rt.cfg)

	rootCmd.AddCommand(newQuestionsCmd(rt))
	rootCmd.AddCommand(newAgentsCmd(rt))
	rootCmd.AddCommand(newHistoryCmd(rt))
	rootCmd.AddCommand(newMCPCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))

	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

// logContext sets up the logger once per command: terminal format when
// stderr is a TTY, JSON otherwise.
func (rt *runtime) logContext(ctx context.Context, w io.Writer) context.Context {
	format := log.FormatJSON
	if present.IsErrorTTY() {
		format = log.FormatTerminal
	}
	ctx = log.Context(ctx,
		log.WithFormat(format),
		log.WithOutput(w),
		log.WithDisableBuffering(func(context.Context) bool { return true }),
	)
	if rt.cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	return ctx
}

func credentialFromConfig(cfg config.Config) (azcore.TokenCredential, error) {
	cred, err := agents.NewCredential(agents.CredentialOptions{
		Kind:     cfg.Credential,
		TenantID: cfg.TenantID,
		ClientID: cfg.ClientID,
		Command:  cfg.TokenCmd,
	})
	if err != nil {
		return nil, errs.Wrap(err, "Could not set up Azure credentials. Run az login or pick another --credential.")
	}
	return cred, nil
}

func (rt *runtime) newClient(endpoint string, cred azcore.TokenCredential) (*agents.Client, error) {
	retries := rt.cfg.MaxRetries
	if retries == 0 {
		// azcore treats zero as "use the default".
		retries = -1
	}
	opts := &agents.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry:     policy.RetryOptions{MaxRetries: int32(retries)}, //nolint:gosec
			Transport: rt.transport,
		},
		APIVersion: rt.cfg.APIVersion,
	}
	client, err := agents.NewClient(endpoint, cred, opts)
	if err != nil {
		return nil, errs.Wrap(err, "Could not create the agents client.")
	}
	return client, nil
}

func (rt *runtime) runConversation(ctx context.Context, stdout, stderr io.Writer) error {
	cfg := &rt.cfg
	question, err := cfg.SelectedQuestion()
	if err != nil {
		return err
	}

	cred, err := rt.newCredential(*cfg)
	if err != nil {
		return err
	}
	client, err := rt.newClient(cfg.Endpoint, cred)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	styles := present.StderrStyles()
	var observer agent.Observer = agent.NopObserver{}
	if !cfg.Quiet {
		observer = newProgress(stderr, styles, cfg.MCPServerLabel, cfg.MCPServerURL)
	}

	if cfg.Preflight {
		if err := preflight(ctx, cfg, cred, stderr); err != nil {
			return err
		}
	}

	var store *localStore
	if !cfg.NoLedger {
		store, err = openLocalStore(cfg.CachePath)
		if err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "agent ledger disabled"}, log.KV{K: "err", V: err.Error()})
			store = nil
		}
		defer store.Close() //nolint:errcheck
	}
	record := func(conv agent.Conversation) {
		if store == nil || conv.Agent.ID == "" {
			return
		}
		if err := store.recordAgent(client.Endpoint(), conv, question); err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "could not record agent"}, log.KV{K: "err", V: err.Error()})
		}
	}

	svc := agent.New(client, cfg, agent.WithObserver(observer))
	created, err := svc.Provision(ctx)
	if err != nil {
		return err
	}
	record(agent.Conversation{Agent: created})

	conv, err := svc.Converse(ctx, created, question)
	record(conv)
	if err != nil {
		return err
	}

	run, pollErr := svc.Poll(ctx, conv.Thread.ID, conv.Run)
	if pollErr != nil && !errors.Is(pollErr, agent.ErrPollTimeout) {
		return pollErr
	}
	if !cfg.Quiet {
		fmt.Fprintf(stderr, "Run completed with status: %s\n", present.StatusStyle(styles, run.Status).Render(string(run.Status)))
	}
	if agent.RunFailure(run) != nil {
		fmt.Fprintf(stderr, "Run failed: %s\n", present.HighlightIDs(styles, ordered.First(run.LastError.String(), "no details")))
	}

	report, err := svc.Report(ctx, conv.Thread.ID, run)
	if err != nil {
		return err
	}
	if err := present.PrintReport(stdout, present.StdoutStyles(), report, present.ReportOptions{
		Markdown: present.IsOutputTTY() && !cfg.Raw,
		WordWrap: cfg.WordWrap,
	}); err != nil {
		return errs.Wrap(err, "Could not print the conversation.")
	}
	if store != nil {
		if err := store.saveReport(report); err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "could not save transcript"}, log.KV{K: "err", V: err.Error()})
		}
	}

	if cfg.DeleteAgent {
		if err := svc.Delete(ctx, created.ID); err != nil {
			return err
		}
		if store != nil {
			if err := store.DB.Delete(created.ID); err != nil {
				log.Warn(ctx, log.KV{K: "msg", V: "could not drop agent from ledger"}, log.KV{K: "err", V: err.Error()})
			}
		}
		if !cfg.Quiet {
			fmt.Fprintln(stderr, "Deleted agent")
		}
	}

	if pollErr != nil {
		return errs.Wrap(pollErr, fmt.Sprintf("The run did not finish within %s and was cancelled.", cfg.PollTimeout))
	}
	return nil
}

func preflight(ctx context.Context, cfg *config.Config, cred azcore.TokenCredential, w io.Writer) error {
	tools, err := mcp.New(cfg, cred).Tools(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if len(tools) == 0 {
		return errs.Wrap(errs.UserErrorf("%s exposes no tools", cfg.MCPServerURL), "The MCP server has no tools to offer.")
	}
	if !cfg.Quiet {
		names := make([]string, 0, len(tools))
		for _, tool := range tools {
			names = append(names, tool.Name)
		}
		fmt.Fprintf(w, "MCP server %s exposes %s\n", cfg.MCPServerLabel, toolList(names))
	}
	return nil
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
