package agent

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/cosmos-agent/internal/agents"
)

// Report is the trace and transcript of a finished run.
type Report struct {
	AgentID  string           `json:"agent_id"`
	ThreadID string           `json:"thread_id"`
	Question string           `json:"question,omitempty"`
	Run      agents.Run       `json:"run"`
	Steps    []agents.RunStep `json:"steps"`
	Messages []agents.Message `json:"messages"`
}

// Entry is one line of the conversation transcript.
type Entry struct {
	Role agents.MessageRole
	Text string
}

// Transcript returns the last text segment of every message that has
// text, oldest first.
func (r Report) Transcript() []Entry {
	entries := make([]Entry, 0, len(r.Messages))
	for _, msg := range r.Messages {
		text, ok := msg.LastText()
		if !ok {
			continue
		}
		entries = append(entries, Entry{Role: msg.Role, Text: text})
	}
	return entries
}

// ActivityTools returns the tools of an activity sorted by name.
func ActivityTools(activity agents.RunStepActivity) []string {
	return slices.Sorted(maps.Keys(activity.Tools))
}

// Report fetches the steps of run and every message of its thread. It does
// not change anything remotely.
func (s *Service) Report(ctx context.Context, threadID string, run agents.Run) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "agent.report", trace.WithAttributes(
		attribute.String("agent.thread_id", threadID),
		attribute.String("agent.run_id", run.ID),
	))
	defer span.End()

	report := Report{AgentID: run.AgentID, ThreadID: threadID, Run: run}
	asc := &agents.ListOptions{Order: agents.OrderAscending}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		steps, err := s.api.ListRunSteps(gctx, threadID, run.ID, asc)
		if err != nil {
			return remote(span, err, "list run steps")
		}
		report.Steps = steps
		return nil
	})
	g.Go(func() error {
		msgs, err := s.api.ListMessages(gctx, threadID, asc)
		if err != nil {
			return remote(span, err, "list messages")
		}
		report.Messages = msgs
		return nil
	})
	if err := g.Wait(); err != nil {
		return report, err
	}

	slices.SortStableFunc(report.Messages, func(a, b agents.Message) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	for _, msg := range report.Messages {
		if msg.Role == agents.RoleUser {
			if text, ok := msg.LastText(); ok {
				report.Question = text
				break
			}
		}
	}
	span.SetAttributes(
		attribute.Int("agent.steps", len(report.Steps)),
		attribute.Int("agent.messages", len(report.Messages)),
	)
	return report, nil
}
