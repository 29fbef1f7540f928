package agents

import (
	"encoding/json"
	"time"
)

// Timestamp is a unix time in seconds as returned by the service.
type Timestamp int64

// Time converts the timestamp to a time.Time; the zero timestamp maps to
// the zero time.
func (t Timestamp) Time() time.Time {
	if t == 0 {
		return time.Time{}
	}
	return time.Unix(int64(t), 0).UTC()
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses reported by the service.
const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// Pending reports whether the service may still change the run status
// without further input from the client.
func (s RunStatus) Pending() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusRequiresAction:
		return true
	}
	return false
}

// MessageRole is the author of a thread message.
type MessageRole string

// Message roles.
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ListOrder sorts list results by creation time.
type ListOrder string

// List orders.
const (
	OrderAscending  ListOrder = "asc"
	OrderDescending ListOrder = "desc"
)

// Tool types understood by this client.
const (
	ToolTypeMCP      = "mcp"
	ToolTypeFunction = "function"
)

// RequireApprovalNever lets the service call MCP tools without asking the
// client for approval first.
const RequireApprovalNever = "never"

// ServerAuthentication selects how the service authenticates to an MCP
// server. With Type "connection" the credentials stored in the named project
// connection are used.
type ServerAuthentication struct {
	Type           string `json:"type"`
	ConnectionName string `json:"connection_name,omitempty"`
}

// ToolDefinition declares a tool on an agent.
type ToolDefinition struct {
	Type                 string                `json:"type"`
	ServerURL            string                `json:"server_url,omitempty"`
	ServerLabel          string                `json:"server_label,omitempty"`
	ServerAuthentication *ServerAuthentication `json:"server_authentication,omitempty"`
	Function             *FunctionDefinition   `json:"function,omitempty"`
}

// MCPTool builds the descriptor of a remote MCP server authenticated through
// a project connection.
func MCPTool(serverURL, label, connection string) ToolDefinition {
	return ToolDefinition{
		Type:        ToolTypeMCP,
		ServerURL:   serverURL,
		ServerLabel: label,
		ServerAuthentication: &ServerAuthentication{
			Type:           "connection",
			ConnectionName: connection,
		},
	}
}

// MCPToolResource configures an MCP server for a single run.
type MCPToolResource struct {
	ServerLabel     string            `json:"server_label"`
	RequireApproval string            `json:"require_approval,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// ToolResources carries per-run tool configuration.
type ToolResources struct {
	MCP []MCPToolResource `json:"mcp,omitempty"`
}

// Agent is an agent definition stored by the service.
type Agent struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Model        string            `json:"model"`
	Instructions string            `json:"instructions,omitempty"`
	Tools        []ToolDefinition  `json:"tools,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    Timestamp         `json:"created_at,omitempty"`
}

// CreateAgentParams is the create-agent request body.
type CreateAgentParams struct {
	Model        string            `json:"model"`
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
	Tools        []ToolDefinition  `json:"tools,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Thread is a conversation context.
type Thread struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt Timestamp         `json:"created_at,omitempty"`
}

// TextContent is the text payload of a message content part.
type TextContent struct {
	Value string `json:"value"`
}

// MessageContent is one part of a message.
type MessageContent struct {
	Type string       `json:"type"`
	Text *TextContent `json:"text,omitempty"`
}

// Message is an immutable entry of a thread.
type Message struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"thread_id"`
	RunID     string           `json:"run_id,omitempty"`
	AgentID   string           `json:"assistant_id,omitempty"`
	Role      MessageRole      `json:"role"`
	Content   []MessageContent `json:"content"`
	CreatedAt Timestamp        `json:"created_at"`
}

// TextMessages returns the text parts of the message, in order.
func (m Message) TextMessages() []string {
	var texts []string
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			texts = append(texts, c.Text.Value)
		}
	}
	return texts
}

// LastText returns the last text part of the message.
func (m Message) LastText() (string, bool) {
	texts := m.TextMessages()
	if len(texts) == 0 {
		return "", false
	}
	return texts[len(texts)-1], true
}

// CreateMessageParams is the create-message request body.
type CreateMessageParams struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// FunctionCall is the function payload of a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// ToolCall is a tool invocation requested by a run or recorded in a run
// step. Function tool calls carry Function; MCP tool calls carry the
// top-level name, arguments and server label.
type ToolCall struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Function    *FunctionCall `json:"function,omitempty"`
	Name        string        `json:"name,omitempty"`
	Arguments   string        `json:"arguments,omitempty"`
	ServerLabel string        `json:"server_label,omitempty"`
	Output      string        `json:"output,omitempty"`
}

// ToolName returns the name of the invoked tool regardless of the call type.
func (c ToolCall) ToolName() string {
	if c.Function != nil {
		return c.Function.Name
	}
	return c.Name
}

// ToolOutput answers one pending tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// SubmitToolOutputs lists the tool calls a run is waiting on.
type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// RequiredActionSubmitToolOutputs is the only required action this client
// answers.
const RequiredActionSubmitToolOutputs = "submit_tool_outputs"

// RequiredAction is set while a run is in requires_action.
type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

// RunError describes why a run or run step failed.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RunError) String() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Usage reports token consumption of a run.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Run is one execution of an agent against a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	AgentID        string          `json:"assistant_id"`
	Status         RunStatus       `json:"status"`
	Model          string          `json:"model,omitempty"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
	Usage          *Usage          `json:"usage,omitempty"`
	CreatedAt      Timestamp       `json:"created_at,omitempty"`
	CompletedAt    Timestamp       `json:"completed_at,omitempty"`
}

// PendingToolCalls returns the tool calls of a submit_tool_outputs action.
// ok is false when the run carries no such action.
func (r Run) PendingToolCalls() (calls []ToolCall, ok bool) {
	if r.RequiredAction == nil || r.RequiredAction.Type != RequiredActionSubmitToolOutputs {
		return nil, false
	}
	if r.RequiredAction.SubmitToolOutputs == nil {
		return nil, true
	}
	return r.RequiredAction.SubmitToolOutputs.ToolCalls, true
}

// CreateRunParams is the create-run request body.
type CreateRunParams struct {
	AgentID       string         `json:"assistant_id"`
	ToolResources *ToolResources `json:"tool_resources,omitempty"`
}

// FunctionArgument describes one parameter of a function exposed by a tool.
type FunctionArgument struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// FunctionParameters is the JSON schema of a function's arguments.
type FunctionParameters struct {
	Type       string                      `json:"type,omitempty"`
	Properties map[string]FunctionArgument `json:"properties,omitempty"`
	Required   []string                    `json:"required,omitempty"`
}

// Empty reports whether the schema carries no field at all.
func (p *FunctionParameters) Empty() bool {
	return p == nil || (p.Type == "" && len(p.Properties) == 0 && len(p.Required) == 0)
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *FunctionParameters `json:"parameters,omitempty"`
}

// RunStepActivity is an activity recorded in a run step, such as the list of
// tools an MCP server advertised.
type RunStepActivity struct {
	ID    string                        `json:"id,omitempty"`
	Type  string                        `json:"type"`
	Tools map[string]FunctionDefinition `json:"tools,omitempty"`
}

// MessageCreation points at the message produced by a step.
type MessageCreation struct {
	MessageID string `json:"message_id"`
}

// RunStepDetails is the payload of a run step.
type RunStepDetails struct {
	Type            string            `json:"type"`
	ToolCalls       []ToolCall        `json:"tool_calls,omitempty"`
	Activities      []RunStepActivity `json:"activities,omitempty"`
	MessageCreation *MessageCreation  `json:"message_creation,omitempty"`
}

// RunStep is a recorded unit of run execution.
type RunStep struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id,omitempty"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	StepDetails RunStepDetails `json:"step_details"`
	LastError   *RunError      `json:"last_error,omitempty"`
	CreatedAt   Timestamp      `json:"created_at,omitempty"`
}

// Page is one page of a list operation.
type Page[T any] struct {
	Data    []T    `json:"data"`
	FirstID string `json:"first_id,omitempty"`
	LastID  string `json:"last_id,omitempty"`
	HasMore bool   `json:"has_more"`
}

// ListOptions narrows list operations.
type ListOptions struct {
	Order ListOrder
	Limit int
}

type deletionStatus struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type submitToolOutputsParams struct {
	ToolOutputs []ToolOutput `json:"tool_outputs"`
}

// EmptyObject is the placeholder output acknowledging a tool call whose
// work already happened on the service side.
var EmptyObject = json.RawMessage("{}")
