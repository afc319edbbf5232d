package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Bridge exposes one session to an agent as MCP tools over stdio. Every
// tool call is forwarded to the compass HTTP server with the session id
// filled in, so the agent never has to know it.
type Bridge struct {
	addr      string
	sessionID string
	client    *http.Client
}

// NewBridge creates a Bridge for sessionID talking to the server at addr.
func NewBridge(addr, sessionID string) *Bridge {
	return &Bridge{
		addr:      addr,
		sessionID: sessionID,
		client:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// RunBridge serves the bridge on stdin/stdout until stdin closes.
func RunBridge(addr, sessionID string) error {
	return mcpserver.ServeStdio(NewBridge(addr, sessionID).MCPServer())
}

// MCPServer builds the MCP server with the session tools registered.
func (b *Bridge) MCPServer() *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("compass", "1.0.0", mcpserver.WithToolCapabilities(true))

	s.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Read the planning session: state, questions, answers, plan and progress"),
	), b.forward("/sessions/get"))

	s.AddTool(mcp.NewTool("answer_question",
		mcp.WithDescription("Answer an interview question. Address it by key or index; omit both for the current question"),
		mcp.WithString("value", mcp.Required(), mcp.Description("The answer text")),
		mcp.WithString("key", mcp.Description("Question key")),
		mcp.WithNumber("index", mcp.Description("Zero-based question index")),
	), b.forward("/sessions/answer"))

	s.AddTool(mcp.NewTool("skip_question",
		mcp.WithDescription("Skip an optional interview question"),
		mcp.WithString("key", mcp.Description("Question key")),
		mcp.WithNumber("index", mcp.Description("Zero-based question index")),
	), b.forward("/sessions/skip"))

	s.AddTool(mcp.NewTool("complete_interview",
		mcp.WithDescription("Finish the interview once every required question is answered"),
	), b.forward("/sessions/complete_interview"))

	s.AddTool(mcp.NewTool("set_plan",
		mcp.WithDescription("Install a plan for the user to confirm"),
		mcp.WithObject("plan", mcp.Required(),
			mcp.Description("Plan with title, summary, tasks (id, name, description, action, output), outputs and notes")),
	), b.forward("/sessions/set_plan"))

	s.AddTool(mcp.NewTool("report_progress",
		mcp.WithDescription("Report execution progress for the current task"),
		mcp.WithString("task_name", mcp.Required(), mcp.Description("Name of the task being worked on")),
		mcp.WithNumber("percent", mcp.Required(), mcp.Description("Overall progress, 0-100")),
	), b.forward("/sessions/progress"))

	return s
}

// forward returns a tool handler that posts the call's arguments to endpoint.
func (b *Bridge) forward(endpoint string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := json.Marshal(injectSessionID(req.GetArguments(), b.sessionID))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding arguments: %v", err)), nil
		}

		url := fmt.Sprintf("http://%s%s", b.addr, endpoint)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("building request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("compass request failed: %v", err)), nil
		}
		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading compass response: %v", err)), nil
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return mcp.NewToolResultError(string(respBody)), nil
		}
		return mcp.NewToolResultText(string(respBody)), nil
	}
}

// injectSessionID adds session_id to the arguments unless the caller already
// set one. JSON numbers arrive as float64 and integral ones are narrowed so
// index and percent decode into int fields.
func injectSessionID(args map[string]any, sessionID string) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			v = int(f)
		}
		out[k] = v
	}
	if _, exists := out["session_id"]; !exists && sessionID != "" {
		out["session_id"] = sessionID
	}
	return out
}
