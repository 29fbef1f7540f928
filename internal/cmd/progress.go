package cmd

import (
	"fmt"
	"io"

	"github.com/dotcommander/cosmos-agent/internal/agent"
	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/present"
)

// progress prints one line per conversation event.
type progress struct {
	w      io.Writer
	s      present.Styles
	server string
}

var _ agent.Observer = (*progress)(nil)

func newProgress(w io.Writer, s present.Styles, label, url string) *progress {
	return &progress{w: w, s: s, server: fmt.Sprintf("%s at %s", label, url)}
}

func (p *progress) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", a...)
}

func (p *progress) id(id string) string { return p.s.ID.Render(id) }

func (p *progress) AgentCreated(a agents.Agent) {
	p.printf("Created agent, ID: %s", p.id(a.ID))
	p.printf("MCP Server: %s", p.server)
}

func (p *progress) ThreadCreated(t agents.Thread) {
	p.printf("Created thread, ID: %s", p.id(t.ID))
}

func (p *progress) MessageCreated(m agents.Message) {
	p.printf("Created message, ID: %s", p.id(m.ID))
}

func (p *progress) RunCreated(r agents.Run) {
	p.printf("Created run, ID: %s", p.id(r.ID))
}

func (p *progress) ToolCallReceived(c agents.ToolCall) {
	if name := c.ToolName(); name != "" {
		p.printf("Processing tool call: %s %s", p.id(c.ID), p.s.Comment.Render("("+name+")"))
		return
	}
	p.printf("Processing tool call: %s", p.id(c.ID))
}

func (p *progress) ToolOutputsSubmitted(outputs []agents.ToolOutput) {
	p.printf("Submitted %d tool output(s)", len(outputs))
}

func (p *progress) RunPolled(r agents.Run) {
	p.printf("Current run status: %s", present.StatusStyle(p.s, r.Status).Render(string(r.Status)))
}

func (p *progress) RunCancelled(r agents.Run, reason string) {
	p.printf("Cancelling run %s: %s", p.id(r.ID), present.HighlightIDs(p.s, reason))
}
