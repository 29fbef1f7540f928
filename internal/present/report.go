package present

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/cosmos-agent/internal/agent"
	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/storage"
)

const ruleWidth = 50

// ReportOptions controls how a report is printed.
type ReportOptions struct {
	// Markdown renders assistant text with glamour.
	Markdown bool
	WordWrap int
}

// PrintReport writes the run steps followed by the conversation transcript.
func PrintReport(w io.Writer, s Styles, r agent.Report, opts ReportOptions) error {
	var b strings.Builder
	for _, step := range r.Steps {
		writeStep(&b, s, step)
	}

	rule := s.Rule.Render(strings.Repeat("-", ruleWidth))
	b.WriteString("\nConversation:\n")
	b.WriteString(rule + "\n")
	for _, entry := range r.Transcript() {
		text := entry.Text
		role := s.UserRole
		if entry.Role != agents.RoleUser {
			role = s.AssistantRole
			if opts.Markdown {
				out, err := RenderMarkdownForTTY(text, opts.WordWrap)
				if err != nil {
					return err
				}
				text = "\n" + strings.TrimRight(out, "\n")
			}
		}
		fmt.Fprintf(&b, "%s %s\n", role.Render(strings.ToUpper(string(entry.Role))+":"), text)
		b.WriteString(rule + "\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	return nil
}

func writeStep(b *strings.Builder, s Styles, step agents.RunStep) {
	fmt.Fprintf(b, "Step %s status: %s\n", s.ID.Render(step.ID), StatusStyle(s, agents.RunStatus(step.Status)).Render(step.Status))
	if step.LastError != nil {
		fmt.Fprintf(b, "  Error: %s\n", step.LastError)
	}

	details := step.StepDetails
	if len(details.ToolCalls) > 0 {
		b.WriteString("  MCP Tool calls:\n")
		for _, call := range details.ToolCalls {
			fmt.Fprintf(b, "    %s %s\n", s.Key.Render("Tool Call ID:"), call.ID)
			fmt.Fprintf(b, "    %s %s\n", s.Key.Render("Type:"), call.Type)
		}
	}

	for _, activity := range details.Activities {
		for _, name := range agent.ActivityTools(activity) {
			def := activity.Tools[name]
			fmt.Fprintf(b, "  The function %s with description %q will be called.\n", s.ID.Render(name), def.Description)
			if def.Parameters.Empty() {
				b.WriteString("This function has no parameters\n")
				continue
			}
			b.WriteString("  Function parameters:\n")
			props := def.Parameters.Properties
			for _, arg := range slices.Sorted(maps.Keys(props)) {
				fmt.Fprintf(b, "      %s\n", arg)
				fmt.Fprintf(b, "      %s %s\n", s.Key.Render("Type:"), props[arg].Type)
				fmt.Fprintf(b, "      %s %s\n", s.Key.Render("Description:"), props[arg].Description)
			}
		}
	}
	b.WriteString("\n")
}

// StatusStyle picks the style for a run or step status.
func StatusStyle(s Styles, status agents.RunStatus) lipgloss.Style {
	switch status {
	case agents.RunStatusCompleted:
		return s.StatusOK
	case agents.RunStatusFailed, agents.RunStatusCancelled, agents.RunStatusExpired, agents.RunStatusIncomplete:
		return s.StatusBad
	}
	return s.Value
}

// HighlightIDs renders every resource ID found in text with the ID style.
func HighlightIDs(s Styles, text string) string {
	return storage.IDRegexp.ReplaceAllStringFunc(text, func(id string) string {
		return s.ID.Render(id)
	})
}
