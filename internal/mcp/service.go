// Package mcp talks to the MCP server the agent is bound to, so its tools
// can be listed and called without going through the agent service.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"goa.design/clue/log"

	"github.com/dotcommander/cosmos-agent/internal/config"
	"github.com/dotcommander/cosmos-agent/internal/errs"
)

// Service provides access to the configured MCP server.
type Service struct {
	cfg  *config.Config
	cred azcore.TokenCredential
}

// New creates a new MCP service. cred is only used when the settings name
// a token scope for the server; it may be nil otherwise.
func New(cfg *config.Config, cred azcore.TokenCredential) *Service {
	return &Service{cfg: cfg, cred: cred}
}

// URL returns the server URL.
func (s *Service) URL() string { return s.cfg.MCPServerURL }

// Label returns the server label.
func (s *Service) Label() string { return s.cfg.MCPServerLabel }

// Tools lists the tools exposed by the server.
func (s *Service) Tools(ctx context.Context) ([]mcp.Tool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cli, err := s.initClient(ctx)
	if err != nil {
		return nil, s.wrap(err, "Could not list tools")
	}
	defer cli.Close() //nolint:errcheck

	tools, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, s.wrap(err, "Could not list tools")
	}
	log.Debug(ctx, log.KV{K: "msg", V: "listed mcp tools"}, log.KV{K: "server", V: s.Label()}, log.KV{K: "tools", V: len(tools.Tools)})
	return tools.Tools, nil
}

// CallTool executes a tool with JSON-encoded arguments and returns its text
// output.
func (s *Service) CallTool(ctx context.Context, name string, data []byte) (string, error) {
	var args map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &args); err != nil {
			return "", errs.Wrap(fmt.Errorf("%w: %s", err, string(data)), "Tool arguments must be a JSON object.")
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cli, err := s.initClient(ctx)
	if err != nil {
		return "", s.wrap(err, fmt.Sprintf("Could not call %s", name))
	}
	defer cli.Close() //nolint:errcheck

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", s.wrap(err, fmt.Sprintf("Could not call %s", name))
	}

	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}

	if result.IsError {
		return "", errs.Wrap(errors.New(sb.String()), fmt.Sprintf("Tool %s returned an error.", name))
	}
	return sb.String(), nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.MCPTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.MCPTimeout)
}

func (s *Service) wrap(err error, reason string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(
			fmt.Errorf("timeout while talking to %s - make sure MCP_SERVER_URL is reachable", s.URL()),
			reason,
		)
	}
	return errs.Wrap(err, reason)
}

// headers returns the HTTP headers sent to the server. A static token wins
// over a token requested for the configured scope.
func (s *Service) headers(ctx context.Context) (map[string]string, error) {
	if s.cfg.MCPServerToken != "" {
		return map[string]string{"Authorization": "Bearer " + s.cfg.MCPServerToken}, nil
	}
	if s.cfg.MCPServerScope == "" {
		return nil, nil
	}
	if s.cred == nil {
		return nil, errors.New("MCP_SERVER_SCOPE is set but no credential is available")
	}
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{s.cfg.MCPServerScope}})
	if err != nil {
		return nil, fmt.Errorf("get token for %s: %w", s.cfg.MCPServerScope, err)
	}
	return map[string]string{"Authorization": "Bearer " + tok.Token}, nil
}

// initClient connects to the server. URLs ending in /sse use the legacy SSE
// transport; everything else speaks streamable HTTP.
func (s *Service) initClient(ctx context.Context) (*client.Client, error) {
	u, err := url.Parse(s.URL())
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid MCP server URL %q", s.URL())
	}
	headers, err := s.headers(ctx)
	if err != nil {
		return nil, err
	}

	var cli *client.Client
	if strings.HasSuffix(u.Path, "/sse") {
		cli, err = client.NewSSEMCPClient(s.URL(), transport.WithHeaders(headers))
	} else {
		cli, err = client.NewStreamableHttpClient(s.URL(), transport.WithHTTPHeaders(headers))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := cli.Start(ctx); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	if _, err := cli.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	return cli, nil
}
