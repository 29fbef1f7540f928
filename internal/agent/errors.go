package agent

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/errs"
)

// ErrPollTimeout is returned by Poll when the configured poll timeout
// elapses before the run reaches a terminal status. The run has been asked
// to cancel by then.
var ErrPollTimeout = errors.New("run did not finish before the poll timeout")

// ErrNoToolCalls describes a submit_tool_outputs action without any tool
// call. The run is cancelled when it happens.
var ErrNoToolCalls = errors.New("no tool calls provided")

// remote turns a failed service call into a user-facing error and records
// it on the span.
func remote(span trace.Span, err error, op string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return errs.Remote(err, op)
}

// RunFailure describes a run that ended in the failed status. It is not
// returned by Poll: a failed run is still reported.
func RunFailure(run agents.Run) error {
	if run.Status != agents.RunStatusFailed {
		return nil
	}
	if run.LastError == nil {
		return errs.UserErrorf("run %s failed without details", run.ID)
	}
	return fmt.Errorf("run %s failed: %s", run.ID, run.LastError)
}
