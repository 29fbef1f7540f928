package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/require"
)

const projectPath = "/api/projects/demo"

type staticCredential struct{}

func (staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "test-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func newTestClient(t *testing.T, mux *http.ServeMux, apiVersion string) *Client {
	t.Helper()
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL+projectPath, staticCredential{}, &ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: srv.Client(),
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
		APIVersion: apiVersion,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, client.Close()) })
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClient(t *testing.T) {
	tests := map[string]struct {
		endpoint string
		cred     azcore.TokenCredential
		wantErr  bool
	}{
		"valid":         {endpoint: "https://res.services.ai.azure.com/api/projects/p", cred: staticCredential{}},
		"empty":         {endpoint: "", cred: staticCredential{}, wantErr: true},
		"plain http":    {endpoint: "http://localhost:8080", cred: staticCredential{}, wantErr: true},
		"relative":      {endpoint: "/api/projects/p", cred: staticCredential{}, wantErr: true},
		"no credential": {endpoint: "https://res.services.ai.azure.com", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			client, err := NewClient(tc.endpoint, tc.cred, nil)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.endpoint, client.Endpoint())
		})
	}
}

func TestCreateAgent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+projectPath+"/assistants", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "gpt-4o", body["model"])
		require.Equal(t, "demo-agent", body["name"])
		tools := body["tools"].([]any)
		require.Len(t, tools, 1)
		require.Equal(t, map[string]any{
			"type":         "mcp",
			"server_url":   "https://mcp.example.com/mcp",
			"server_label": "cosmosdb",
			"server_authentication": map[string]any{
				"type":            "connection",
				"connection_name": "conn",
			},
		}, tools[0])

		writeJSON(t, w, map[string]any{"id": "asst_1", "model": "gpt-4o", "name": "demo-agent", "created_at": 1700000000})
	})
	client := newTestClient(t, mux, "")

	agent, err := client.CreateAgent(context.Background(), CreateAgentParams{
		Model: "gpt-4o",
		Name:  "demo-agent",
		Tools: []ToolDefinition{MCPTool("https://mcp.example.com/mcp", "cosmosdb", "conn")},
	})
	require.NoError(t, err)
	require.Equal(t, "asst_1", agent.ID)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), agent.CreatedAt.Time())
}

func TestDeleteAgent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE "+projectPath+"/assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		writeJSON(t, w, map[string]any{"id": id, "deleted": id == "asst_ok"})
	})
	client := newTestClient(t, mux, "")

	require.NoError(t, client.DeleteAgent(context.Background(), "asst_ok"))
	require.ErrorContains(t, client.DeleteAgent(context.Background(), "asst_stuck"), "did not confirm")
}

func TestConversationCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+projectPath+"/threads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": "thread_1"})
	})
	mux.HandleFunc("POST "+projectPath+"/threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body CreateMessageParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, RoleUser, body.Role)
		writeJSON(t, w, map[string]any{
			"id":        "msg_1",
			"thread_id": "thread_1",
			"role":      "user",
			"content":   []any{map[string]any{"type": "text", "text": map[string]any{"value": body.Content}}},
		})
	})
	mux.HandleFunc("POST "+projectPath+"/threads/thread_1/runs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "asst_1", body["assistant_id"])
		require.Equal(t, map[string]any{
			"mcp": []any{map[string]any{"server_label": "cosmosdb", "require_approval": "never"}},
		}, body["tool_resources"])
		writeJSON(t, w, map[string]any{"id": "run_1", "thread_id": "thread_1", "assistant_id": "asst_1", "status": "queued"})
	})
	mux.HandleFunc("GET "+projectPath+"/threads/thread_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"id":     "run_1",
			"status": "requires_action",
			"required_action": map[string]any{
				"type": "submit_tool_outputs",
				"submit_tool_outputs": map[string]any{
					"tool_calls": []any{map[string]any{"id": "call_1", "type": "function", "function": map[string]any{"name": "list_databases"}}},
				},
			},
		})
	})
	mux.HandleFunc("POST "+projectPath+"/threads/thread_1/runs/run_1/submit_tool_outputs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string][]ToolOutput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []ToolOutput{{ToolCallID: "call_1", Output: "{}"}}, body["tool_outputs"])
		writeJSON(t, w, map[string]any{"id": "run_1", "status": "in_progress"})
	})
	mux.HandleFunc("POST "+projectPath+"/threads/thread_1/runs/run_1/cancel", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": "run_1", "status": "cancelling"})
	})
	client := newTestClient(t, mux, "")
	ctx := context.Background()

	thread, err := client.CreateThread(ctx)
	require.NoError(t, err)
	require.Equal(t, "thread_1", thread.ID)

	msg, err := client.CreateMessage(ctx, thread.ID, CreateMessageParams{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)
	text, ok := msg.LastText()
	require.True(t, ok)
	require.Equal(t, "hello", text)

	run, err := client.CreateRun(ctx, thread.ID, CreateRunParams{
		AgentID: "asst_1",
		ToolResources: &ToolResources{MCP: []MCPToolResource{{
			ServerLabel:     "cosmosdb",
			RequireApproval: RequireApprovalNever,
		}}},
	})
	require.NoError(t, err)
	require.Equal(t, RunStatusQueued, run.Status)

	run, err = client.GetRun(ctx, thread.ID, run.ID)
	require.NoError(t, err)
	calls, ok := run.PendingToolCalls()
	require.True(t, ok)
	require.Len(t, calls, 1)
	require.Equal(t, "list_databases", calls[0].ToolName())

	run, err = client.SubmitToolOutputs(ctx, thread.ID, run.ID, []ToolOutput{{ToolCallID: "call_1", Output: string(EmptyObject)}})
	require.NoError(t, err)
	require.Equal(t, RunStatusInProgress, run.Status)

	run, err = client.CancelRun(ctx, thread.ID, run.ID)
	require.NoError(t, err)
	require.Equal(t, RunStatusCancelling, run.Status)
}

func TestListMessagesPages(t *testing.T) {
	var afters []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+projectPath+"/threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "asc", r.URL.Query().Get("order"))
		require.Equal(t, "2", r.URL.Query().Get("limit"))
		require.Equal(t, "2025-05-15-preview", r.URL.Query().Get("api-version"))
		after := r.URL.Query().Get("after")
		afters = append(afters, after)
		switch after {
		case "":
			writeJSON(t, w, map[string]any{
				"data":     []any{map[string]any{"id": "m1", "role": "user"}, map[string]any{"id": "m2", "role": "assistant"}},
				"last_id":  "m2",
				"has_more": true,
			})
		case "m2":
			writeJSON(t, w, map[string]any{
				"data":     []any{map[string]any{"id": "m3", "role": "assistant"}},
				"last_id":  "m3",
				"has_more": false,
			})
		default:
			http.Error(w, "unexpected cursor", http.StatusBadRequest)
		}
	})
	client := newTestClient(t, mux, "2025-05-15-preview")

	msgs, err := client.ListMessages(context.Background(), "thread_1", &ListOptions{Order: OrderAscending, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"", "m2"}, afters)
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	require.Equal(t, []string{"m1", "m2", "m3"}, ids)
}

func TestListRunSteps(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+projectPath+"/threads/thread_1/runs/run_1/steps", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"step_1","status":"completed","type":"activities","step_details":{"type":"activities","activities":[{"type":"mcp_list_tools","tools":{"list_databases":{"description":"List databases","parameters":{"type":"object","properties":{}}}}}]}}],"has_more":false}`)
	})
	client := newTestClient(t, mux, "")

	steps, err := client.ListRunSteps(context.Background(), "thread_1", "run_1", nil)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	activities := steps[0].StepDetails.Activities
	require.Len(t, activities, 1)
	require.Equal(t, "List databases", activities[0].Tools["list_databases"].Description)
}

func TestResponseError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+projectPath+"/threads/missing/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-error-code", "not_found")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"not_found","message":"No thread found"}}`)
	})
	client := newTestClient(t, mux, "")

	_, err := client.GetRun(context.Background(), "missing", "run_1")
	require.Error(t, err)
	var respErr *azcore.ResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.StatusNotFound, respErr.StatusCode)
	require.Equal(t, "not_found", respErr.ErrorCode)
}
