package agent

import "github.com/dotcommander/cosmos-agent/internal/agents"

// Observer is notified as a conversation progresses.
type Observer interface {
	AgentCreated(agents.Agent)
	ThreadCreated(agents.Thread)
	MessageCreated(agents.Message)
	RunCreated(agents.Run)
	// ToolCallReceived is called for every pending tool call before its
	// output is built.
	ToolCallReceived(agents.ToolCall)
	ToolOutputsSubmitted([]agents.ToolOutput)
	// RunPolled is called after every poll iteration with the latest run.
	RunPolled(agents.Run)
	RunCancelled(run agents.Run, reason string)
}

// NopObserver ignores every notification. Embed it to implement a subset
// of Observer.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) AgentCreated(agents.Agent)                {}
func (NopObserver) ThreadCreated(agents.Thread)              {}
func (NopObserver) MessageCreated(agents.Message)            {}
func (NopObserver) RunCreated(agents.Run)                    {}
func (NopObserver) ToolCallReceived(agents.ToolCall)         {}
func (NopObserver) ToolOutputsSubmitted([]agents.ToolOutput) {}
func (NopObserver) RunPolled(agents.Run)                     {}
func (NopObserver) RunCancelled(agents.Run, string)          {}
