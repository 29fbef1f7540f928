package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/config"
	"github.com/dotcommander/cosmos-agent/internal/errs"
)

const tracerName = "github.com/dotcommander/cosmos-agent/internal/agent"

// API is the part of the agents client the service drives.
type API interface {
	CreateAgent(ctx context.Context, params agents.CreateAgentParams) (agents.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
	CreateThread(ctx context.Context) (agents.Thread, error)
	CreateMessage(ctx context.Context, threadID string, params agents.CreateMessageParams) (agents.Message, error)
	CreateRun(ctx context.Context, threadID string, params agents.CreateRunParams) (agents.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (agents.Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (agents.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []agents.ToolOutput) (agents.Run, error)
	ListRunSteps(ctx context.Context, threadID, runID string, opts *agents.ListOptions) ([]agents.RunStep, error)
	ListMessages(ctx context.Context, threadID string, opts *agents.ListOptions) ([]agents.Message, error)
}

var _ API = (*agents.Client)(nil)

// Service is the core orchestration layer for one agent conversation.
//
// It is UI-agnostic: progress is reported through an Observer and the
// command layer decides how to render it.
type Service struct {
	api      API
	cfg      *config.Config
	observer Observer
	build    OutputBuilder
	tracer   trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithOutputBuilder replaces PlaceholderOutput.
func WithOutputBuilder(b OutputBuilder) Option {
	return func(s *Service) { s.build = b }
}

// New creates an agent service.
func New(api API, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		api:      api,
		cfg:      cfg,
		observer: NopObserver{},
		build:    PlaceholderOutput,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Conversation holds the remote resources of one conversation.
type Conversation struct {
	Agent    agents.Agent
	Thread   agents.Thread
	Question agents.Message
	Run      agents.Run
}

// MCPTool returns the tool descriptor registered on new agents.
func (s *Service) MCPTool() agents.ToolDefinition {
	return agents.MCPTool(s.cfg.MCPServerURL, s.cfg.MCPServerLabel, s.cfg.ConnectionName)
}

// ToolResources returns the per-run MCP configuration: the configured
// server never asks for approval.
func (s *Service) ToolResources() *agents.ToolResources {
	return &agents.ToolResources{
		MCP: []agents.MCPToolResource{{
			ServerLabel:     s.cfg.MCPServerLabel,
			RequireApproval: agents.RequireApprovalNever,
		}},
	}
}

// Provision creates a new agent bound to the configured model and MCP
// server. Every call creates a new remote agent.
func (s *Service) Provision(ctx context.Context) (agents.Agent, error) {
	ctx, span := s.tracer.Start(ctx, "agent.provision", trace.WithAttributes(
		attribute.String("agent.model", s.cfg.Model),
		attribute.String("agent.mcp_label", s.cfg.MCPServerLabel),
	))
	defer span.End()

	instructions, err := config.LoadInstructions(ctx, s.cfg.Instructions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load instructions")
		return agents.Agent{}, errs.Wrap(err, "Could not load the agent instructions.")
	}

	agent, err := s.api.CreateAgent(ctx, agents.CreateAgentParams{
		Model:        s.cfg.Model,
		Name:         s.cfg.AgentName,
		Instructions: instructions,
		Tools:        []agents.ToolDefinition{s.MCPTool()},
	})
	if err != nil {
		return agents.Agent{}, remote(span, err, "create agent")
	}
	span.SetAttributes(attribute.String("agent.id", agent.ID))
	log.Debug(ctx, log.KV{K: "msg", V: "agent created"}, log.KV{K: "agent", V: agent.ID})
	s.observer.AgentCreated(agent)
	return agent, nil
}

// Converse opens a thread, posts question as the only user message and
// starts a run of agent on it.
func (s *Service) Converse(ctx context.Context, agent agents.Agent, question string) (Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "agent.converse", trace.WithAttributes(
		attribute.String("agent.id", agent.ID),
	))
	defer span.End()

	conv := Conversation{Agent: agent}

	thread, err := s.api.CreateThread(ctx)
	if err != nil {
		return conv, remote(span, err, "create thread")
	}
	conv.Thread = thread
	span.SetAttributes(attribute.String("agent.thread_id", thread.ID))
	s.observer.ThreadCreated(thread)

	msg, err := s.api.CreateMessage(ctx, thread.ID, agents.CreateMessageParams{
		Role:    agents.RoleUser,
		Content: question,
	})
	if err != nil {
		return conv, remote(span, err, "post the question")
	}
	conv.Question = msg
	s.observer.MessageCreated(msg)

	run, err := s.api.CreateRun(ctx, thread.ID, agents.CreateRunParams{
		AgentID:       agent.ID,
		ToolResources: s.ToolResources(),
	})
	if err != nil {
		return conv, remote(span, err, "start the run")
	}
	conv.Run = run
	span.SetAttributes(attribute.String("agent.run_id", run.ID))
	log.Debug(ctx,
		log.KV{K: "msg", V: "run started"},
		log.KV{K: "thread", V: thread.ID},
		log.KV{K: "run", V: run.ID},
		log.KV{K: "status", V: string(run.Status)},
	)
	s.observer.RunCreated(run)
	return conv, nil
}

// Delete removes an agent created by Provision.
func (s *Service) Delete(ctx context.Context, agentID string) error {
	ctx, span := s.tracer.Start(ctx, "agent.delete", trace.WithAttributes(
		attribute.String("agent.id", agentID),
	))
	defer span.End()

	if err := s.api.DeleteAgent(ctx, agentID); err != nil {
		return remote(span, err, fmt.Sprintf("delete agent %s", agentID))
	}
	log.Debug(ctx, log.KV{K: "msg", V: "agent deleted"}, log.KV{K: "agent", V: agentID})
	return nil
}
