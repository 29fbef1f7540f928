// Package agent contains cosmos-agent's core (non-UI) logic.
//
// It provisions an agent with the MCP tool, opens a thread with one
// question, polls the run to a terminal state while acknowledging tool
// calls, and collects the run steps and transcript for display.
package agent
