package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"github.com/dotcommander/cosmos-agent/internal/agents"
)

// cancelTimeout bounds the cancel request sent when polling is abandoned.
const cancelTimeout = 10 * time.Second

// OutputBuilder produces the output submitted for one pending tool call.
type OutputBuilder func(ctx context.Context, call agents.ToolCall) (agents.ToolOutput, error)

// PlaceholderOutput acknowledges a tool call with an empty JSON object.
// MCP tools run on the service side, so the run only needs an answer to
// move on.
func PlaceholderOutput(_ context.Context, call agents.ToolCall) (agents.ToolOutput, error) {
	if call.ID == "" {
		return agents.ToolOutput{}, errors.New("tool call has no id")
	}
	return agents.ToolOutput{ToolCallID: call.ID, Output: string(agents.EmptyObject)}, nil
}

// backoff yields the delays between two run status checks.
type backoff struct {
	next, max  time.Duration
	multiplier float64
}

func (s *Service) backoff() *backoff {
	b := &backoff{
		next:       s.cfg.PollInterval,
		max:        s.cfg.PollMaxInterval,
		multiplier: s.cfg.PollMultiplier,
	}
	if b.next <= 0 {
		b.next = time.Second
	}
	if b.max < b.next {
		b.max = b.next
	}
	return b
}

func (b *backoff) delay() time.Duration {
	d := b.next
	if b.multiplier > 1 {
		b.next = min(time.Duration(float64(b.next)*b.multiplier), b.max)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll re-fetches run until it leaves the queued, in_progress and
// requires_action statuses, answering submit_tool_outputs actions on the
// way. A pending action without tool calls cancels the run and stops
// polling.
//
// When ctx is cancelled or the poll timeout elapses the run is cancelled
// remotely; Poll then returns the last known run with ctx's error or
// ErrPollTimeout.
func (s *Service) Poll(ctx context.Context, threadID string, run agents.Run) (agents.Run, error) {
	ctx, span := s.tracer.Start(ctx, "agent.poll", trace.WithAttributes(
		attribute.String("agent.thread_id", threadID),
		attribute.String("agent.run_id", run.ID),
	))
	defer span.End()

	pollCtx := ctx
	if s.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, s.cfg.PollTimeout)
		defer cancel()
	}

	wait := s.backoff()
	polls := 0
	for run.Status.Pending() {
		if err := sleep(pollCtx, wait.delay()); err != nil {
			return s.abandon(ctx, span, threadID, run, err)
		}

		latest, err := s.api.GetRun(pollCtx, threadID, run.ID)
		if err != nil {
			if pollCtx.Err() != nil {
				return s.abandon(ctx, span, threadID, run, pollCtx.Err())
			}
			return run, remote(span, err, "get the run status")
		}
		polls++
		run = latest

		if run.Status == agents.RunStatusRequiresAction {
			next, stop, err := s.answer(pollCtx, span, threadID, run)
			if err != nil {
				if pollCtx.Err() != nil {
					return s.abandon(ctx, span, threadID, run, pollCtx.Err())
				}
				return run, err
			}
			run = next
			if stop {
				break
			}
		}
		s.observer.RunPolled(run)
	}

	span.SetAttributes(
		attribute.String("agent.run_status", string(run.Status)),
		attribute.Int("agent.polls", polls),
	)
	if err := RunFailure(run); err != nil {
		log.Warn(ctx, log.KV{K: "msg", V: "run failed"}, log.KV{K: "err", V: err.Error()})
	}
	return run, nil
}

// answer handles a requires_action run. stop reports whether polling must
// end.
func (s *Service) answer(ctx context.Context, span trace.Span, threadID string, run agents.Run) (_ agents.Run, stop bool, _ error) {
	calls, ok := run.PendingToolCalls()
	if !ok {
		log.Debug(ctx, log.KV{K: "msg", V: "ignoring required action"}, log.KV{K: "type", V: actionType(run)})
		return run, false, nil
	}

	if len(calls) == 0 {
		log.Warn(ctx, log.KV{K: "msg", V: "no tool calls provided, cancelling run"}, log.KV{K: "run", V: run.ID})
		cancelled, err := s.api.CancelRun(ctx, threadID, run.ID)
		if err != nil {
			return run, true, remote(span, err, "cancel the run")
		}
		s.observer.RunCancelled(cancelled, ErrNoToolCalls.Error())
		return cancelled, true, nil
	}

	outputs := make([]agents.ToolOutput, 0, len(calls))
	for _, call := range calls {
		s.observer.ToolCallReceived(call)
		out, err := s.buildOutput(ctx, call)
		if err != nil {
			log.Error(ctx, err,
				log.KV{K: "msg", V: "could not prepare tool output"},
				log.KV{K: "tool_call", V: call.ID},
			)
			continue
		}
		outputs = append(outputs, out)
	}
	if len(outputs) == 0 {
		return run, false, nil
	}

	if _, err := s.api.SubmitToolOutputs(ctx, threadID, run.ID, outputs); err != nil {
		return run, false, remote(span, err, "submit tool outputs")
	}
	span.AddEvent("agent.tool_outputs", trace.WithAttributes(attribute.Int("agent.outputs", len(outputs))))
	s.observer.ToolOutputsSubmitted(outputs)
	return run, false, nil
}

func (s *Service) buildOutput(ctx context.Context, call agents.ToolCall) (out agents.ToolOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("output builder panicked: %v", r)
		}
	}()
	return s.build(ctx, call)
}

// abandon cancels the run after polling was interrupted by cause.
func (s *Service) abandon(ctx context.Context, span trace.Span, threadID string, run agents.Run, cause error) (agents.Run, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	reason := "polling interrupted"
	result := cause
	if ctx.Err() == nil && errors.Is(cause, context.DeadlineExceeded) {
		reason = fmt.Sprintf("no terminal status after %s", s.cfg.PollTimeout)
		result = ErrPollTimeout
	}

	cancelled, err := s.api.CancelRun(cctx, threadID, run.ID)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "could not cancel run"}, log.KV{K: "run", V: run.ID})
	} else {
		run = cancelled
		s.observer.RunCancelled(run, reason)
	}
	span.RecordError(result)
	span.SetStatus(codes.Error, reason)
	return run, result
}

func actionType(run agents.Run) string {
	if run.RequiredAction == nil {
		return ""
	}
	return run.RequiredAction.Type
}
