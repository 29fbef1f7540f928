package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	xstrings "github.com/charmbracelet/x/exp/strings"
	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/dotcommander/cosmos-agent/internal/config"
	imcp "github.com/dotcommander/cosmos-agent/internal/mcp"
	"github.com/dotcommander/cosmos-agent/internal/present"
)

func newMCPCmd(rt *runtime) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Talk to the MCP server directly",
		Long:  "Talk to MCP_SERVER_URL without going through the agent service.",
	}

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed by the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			svc, err := rt.mcpService()
			if err != nil {
				return err
			}
			tools, err := svc.Tools(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck
			}
			printTools(cmd.OutOrStdout(), &rt.cfg, tools)
			return nil
		},
	})

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Call one tool and print its text output",
		Example: `  cosmos-agent mcp call list_databases
  cosmos-agent mcp call text_search '{"databaseId":"db","containerId":"items","property":"name","searchText":"test"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			svc, err := rt.mcpService()
			if err != nil {
				return err
			}
			var data []byte
			if len(args) == 2 {
				data = []byte(args[1])
			}
			out, err := svc.CallTool(cmd.Context(), args[0], data)
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	})

	return mcpCmd
}

// mcpService only asks for an Azure credential when the server needs a
// scoped token.
func (rt *runtime) mcpService() (*imcp.Service, error) {
	if rt.cfg.MCPServerScope == "" || rt.cfg.MCPServerToken != "" {
		return imcp.New(&rt.cfg, nil), nil
	}
	cred, err := rt.newCredential(rt.cfg)
	if err != nil {
		return nil, err
	}
	return imcp.New(&rt.cfg, cred), nil
}

func printTools(w io.Writer, cfg *config.Config, tools []mmcp.Tool) {
	slices.SortFunc(tools, func(a, b mmcp.Tool) int { return strings.Compare(a.Name, b.Name) })
	styles := present.StdoutStyles()
	for _, tool := range tools {
		_, _ = fmt.Fprint(w, styles.Timeago.Render(cfg.MCPServerLabel+" > "))
		_, _ = fmt.Fprint(w, styles.ID.Render(tool.Name))
		if tool.Description != "" {
			_, _ = fmt.Fprint(w, " "+styles.Comment.Render(tool.Description))
		}
		_, _ = fmt.Fprintln(w)
	}
}

// toolList renders "3 tools: a, b, and c".
func toolList(names []string) string {
	noun := "tools"
	if len(names) == 1 {
		noun = "tool"
	}
	slices.Sort(names)
	return fmt.Sprintf("%d %s: %s", len(names), noun, xstrings.EnglishJoin(names, true))
}
