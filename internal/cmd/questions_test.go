package cmd

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/present"
)

func TestQuestions(t *testing.T) {
	rt := newTestRuntime(t, http.NewServeMux())
	rt.cfg.Questions = []string{"first?", "second?"}
	rt.cfg.Question = 1

	stdout, _, err := execute(t, rt, "questions")
	require.NoError(t, err)
	require.Equal(t, "   0 first?\n*  1 second?\n", stdout)
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(&buf, present.MakeStyles(lipgloss.NewRenderer(io.Discard)), "cosmosdb", "https://mcp.example.com/mcp")

	p.AgentCreated(agents.Agent{ID: "asst_1"})
	p.ThreadCreated(agents.Thread{ID: "thread_1"})
	p.MessageCreated(agents.Message{ID: "msg_1"})
	p.RunCreated(agents.Run{ID: "run_1"})
	p.ToolCallReceived(agents.ToolCall{ID: "call_1", Function: &agents.FunctionCall{Name: "list_databases"}})
	p.ToolCallReceived(agents.ToolCall{ID: "call_2"})
	p.ToolOutputsSubmitted([]agents.ToolOutput{{ToolCallID: "call_1"}, {ToolCallID: "call_2"}})
	p.RunPolled(agents.Run{ID: "run_1", Status: agents.RunStatusInProgress})
	p.RunCancelled(agents.Run{ID: "run_1"}, "no tool calls to answer")

	require.Equal(t, strings.Join([]string{
		"Created agent, ID: asst_1",
		"MCP Server: cosmosdb at https://mcp.example.com/mcp",
		"Created thread, ID: thread_1",
		"Created message, ID: msg_1",
		"Created run, ID: run_1",
		"Processing tool call: call_1 (list_databases)",
		"Processing tool call: call_2",
		"Submitted 2 tool output(s)",
		"Current run status: in_progress",
		"Cancelling run run_1: no tool calls to answer",
		"",
	}, "\n"), buf.String())
}

func TestToolList(t *testing.T) {
	require.Equal(t, "1 tool: list_databases", toolList([]string{"list_databases"}))
	require.Equal(t, "3 tools: a, b, and c", toolList([]string{"c", "a", "b"}))
}

func TestConfigDirs(t *testing.T) {
	rt := newTestRuntime(t, http.NewServeMux())

	stdout, _, err := execute(t, rt, "config", "dirs", "transcripts")
	require.NoError(t, err)
	require.Equal(t, rt.cfg.CachePath+"/transcripts\n", stdout)

	stdout, _, err = execute(t, rt, "config", "dirs")
	require.NoError(t, err)
	require.Contains(t, stdout, " Configuration: ")
	require.Contains(t, stdout, "        Agents: "+rt.cfg.CachePath+"/agents\n")

	_, _, err = execute(t, rt, "config", "dirs", "nope")
	require.Error(t, err)
}

func TestUsage(t *testing.T) {
	rt := newTestRuntime(t, http.NewServeMux())

	stdout, _, err := execute(t, rt, "--help")
	require.NoError(t, err)
	require.Contains(t, stdout, "Usage:\n  cosmos-agent [COMMAND] [OPTIONS]\n")
	require.Contains(t, stdout, "Commands:\n")
	require.Contains(t, stdout, "-n, --question")
	require.Contains(t, stdout, "Example:\n")
	require.NotContains(t, stdout, "memprofile")
}
