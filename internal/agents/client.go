// Package agents is a thin REST client for the Azure AI Foundry Agents
// service, built on the azcore HTTP pipeline.
package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

const (
	moduleName    = "github.com/dotcommander/cosmos-agent/internal/agents"
	moduleVersion = "v0.1.0"

	// DefaultAPIVersion is sent as the api-version query parameter when
	// ClientOptions.APIVersion is empty.
	DefaultAPIVersion = "v1"

	// DefaultScope is the token scope of the Agents data plane.
	DefaultScope = "https://ai.azure.com/.default"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	azcore.ClientOptions

	// APIVersion overrides DefaultAPIVersion.
	APIVersion string
	// Scope overrides DefaultScope.
	Scope string
}

// Client talks to one project endpoint.
type Client struct {
	endpoint   string
	apiVersion string
	pl         runtime.Pipeline
	transport  policy.Transporter
}

// NewClient returns a client bound to a project endpoint such as
// https://<resource>.services.ai.azure.com/api/projects/<project>.
func NewClient(endpoint string, cred azcore.TokenCredential, opts *ClientOptions) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("agents: endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("agents: parse endpoint: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("agents: endpoint %q must be an absolute https URL", endpoint)
	}
	if cred == nil {
		return nil, errors.New("agents: credential is required")
	}
	if opts == nil {
		opts = &ClientOptions{}
	}
	copts := opts.ClientOptions
	if copts.Transport == nil {
		copts.Transport = &http.Client{}
	}
	scope := opts.Scope
	if scope == "" {
		scope = DefaultScope
	}
	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	auth := runtime.NewBearerTokenPolicy(cred, []string{scope}, nil)
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{auth},
	}, &copts)

	return &Client{
		endpoint:   u.String(),
		apiVersion: apiVersion,
		pl:         pl,
		transport:  copts.Transport,
	}, nil
}

// Endpoint returns the project endpoint the client is bound to.
func (c *Client) Endpoint() string { return c.endpoint }

// Close releases idle connections held by the transport.
func (c *Client) Close() error {
	if ci, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, query url.Values, segments ...string) (*policy.Request, error) {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	req, err := runtime.NewRequest(ctx, method, runtime.JoinPaths(c.endpoint, escaped...))
	if err != nil {
		return nil, err
	}
	q := req.Raw().URL.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api-version", c.apiVersion)
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")
	return req, nil
}

// send issues req with an optional JSON body and decodes a 200 response
// into out.
func (c *Client) send(req *policy.Request, body, out any) error {
	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return err
		}
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return runtime.NewResponseError(resp)
	}
	if out == nil {
		return nil
	}
	return runtime.UnmarshalAsJSON(resp, out)
}

func (c *Client) call(ctx context.Context, method string, body, out any, segments ...string) error {
	req, err := c.newRequest(ctx, method, nil, segments...)
	if err != nil {
		return err
	}
	return c.send(req, body, out)
}

// CreateAgent registers a new agent. Every call creates a new resource.
func (c *Client) CreateAgent(ctx context.Context, params CreateAgentParams) (Agent, error) {
	var agent Agent
	if err := c.call(ctx, http.MethodPost, params, &agent, "assistants"); err != nil {
		return Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return agent, nil
}

// GetAgent fetches an agent definition.
func (c *Client) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var agent Agent
	if err := c.call(ctx, http.MethodGet, nil, &agent, "assistants", agentID); err != nil {
		return Agent{}, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	return agent, nil
}

// DeleteAgent removes an agent definition.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	var status deletionStatus
	if err := c.call(ctx, http.MethodDelete, nil, &status, "assistants", agentID); err != nil {
		return fmt.Errorf("delete agent %s: %w", agentID, err)
	}
	if !status.Deleted {
		return fmt.Errorf("delete agent %s: service did not confirm deletion", agentID)
	}
	return nil
}

// CreateThread opens an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var thread Thread
	if err := c.call(ctx, http.MethodPost, struct{}{}, &thread, "threads"); err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID string, params CreateMessageParams) (Message, error) {
	var msg Message
	if err := c.call(ctx, http.MethodPost, params, &msg, "threads", threadID, "messages"); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// CreateRun starts the agent on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID string, params CreateRunParams) (Run, error) {
	var run Run
	if err := c.call(ctx, http.MethodPost, params, &run, "threads", threadID, "runs"); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	if err := c.call(ctx, http.MethodGet, nil, &run, "threads", threadID, "runs", runID); err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// CancelRun asks the service to stop a run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	if err := c.call(ctx, http.MethodPost, struct{}{}, &run, "threads", threadID, "runs", runID, "cancel"); err != nil {
		return Run{}, fmt.Errorf("cancel run %s: %w", runID, err)
	}
	return run, nil
}

// SubmitToolOutputs answers the pending tool calls of a run.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	var run Run
	body := submitToolOutputsParams{ToolOutputs: outputs}
	if err := c.call(ctx, http.MethodPost, body, &run, "threads", threadID, "runs", runID, "submit_tool_outputs"); err != nil {
		return Run{}, fmt.Errorf("submit tool outputs for run %s: %w", runID, err)
	}
	return run, nil
}

// NewListMessagesPager pages through the messages of a thread.
func (c *Client) NewListMessagesPager(threadID string, opts *ListOptions) *runtime.Pager[Page[Message]] {
	return newPager[Message](c, opts, "threads", threadID, "messages")
}

// NewListRunStepsPager pages through the steps of a run.
func (c *Client) NewListRunStepsPager(threadID, runID string, opts *ListOptions) *runtime.Pager[Page[RunStep]] {
	return newPager[RunStep](c, opts, "threads", threadID, "runs", runID, "steps")
}

// ListMessages returns every message of a thread.
func (c *Client) ListMessages(ctx context.Context, threadID string, opts *ListOptions) ([]Message, error) {
	msgs, err := collect(ctx, c.NewListMessagesPager(threadID, opts))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// ListRunSteps returns every step of a run.
func (c *Client) ListRunSteps(ctx context.Context, threadID, runID string, opts *ListOptions) ([]RunStep, error) {
	steps, err := collect(ctx, c.NewListRunStepsPager(threadID, runID, opts))
	if err != nil {
		return nil, fmt.Errorf("list run steps: %w", err)
	}
	return steps, nil
}

func newPager[T any](c *Client, opts *ListOptions, segments ...string) *runtime.Pager[Page[T]] {
	query := url.Values{}
	if opts != nil {
		if opts.Order != "" {
			query.Set("order", string(opts.Order))
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
	}
	return runtime.NewPager(runtime.PagingHandler[Page[T]]{
		More: func(page Page[T]) bool {
			return page.HasMore && page.LastID != ""
		},
		Fetcher: func(ctx context.Context, prev *Page[T]) (Page[T], error) {
			q := url.Values{}
			for k, v := range query {
				q[k] = v
			}
			if prev != nil {
				q.Set("after", prev.LastID)
			}
			req, err := c.newRequest(ctx, http.MethodGet, q, segments...)
			if err != nil {
				return Page[T]{}, err
			}
			var page Page[T]
			if err := c.send(req, nil, &page); err != nil {
				return Page[T]{}, err
			}
			return page, nil
		},
	})
}

func collect[T any](ctx context.Context, pager *runtime.Pager[Page[T]]) ([]T, error) {
	var items []T
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Data...)
	}
	return items, nil
}
