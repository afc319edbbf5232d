package server

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/internal/planning"
)

func TestInjectSessionID(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		id   string
		want map[string]any
	}{
		{"adds id", map[string]any{"value": "x"}, "s1", map[string]any{"value": "x", "session_id": "s1"}},
		{"keeps caller id", map[string]any{"session_id": "other"}, "s1", map[string]any{"session_id": "other"}},
		{"nil args", nil, "s1", map[string]any{"session_id": "s1"}},
		{"no bridge id", map[string]any{"value": "x"}, "", map[string]any{"value": "x"}},
		{"narrows integral numbers", map[string]any{"index": float64(2), "percent": 50.5}, "", map[string]any{"index": 2, "percent": 50.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := injectSessionID(tt.args, tt.id)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v (%T), want %v (%T)", k, got[k], got[k], v, v)
				}
			}
		})
	}
}

func callTool(t *testing.T, b *Bridge, endpoint string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := b.forward(endpoint)(context.Background(), req)
	if err != nil {
		t.Fatalf("forward %s: %v", endpoint, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func TestBridgeForwardsToServer(t *testing.T) {
	ts := newTestServer(t, controller.Options{})
	snap := create(t, ts)
	b := NewBridge(strings.TrimPrefix(ts.URL, "http://"), snap.ID)

	res := callTool(t, b, "/sessions/answer", map[string]any{"value": "leadership", "index": float64(0)})
	if res.IsError {
		t.Fatalf("answer failed: %s", resultText(t, res))
	}
	var resp SessionResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.ID != snap.ID || resp.Session.Interview.Questions[0].Value() != "leadership" {
		t.Errorf("answer not applied: %+v", resp.Session.Interview)
	}

	res = callTool(t, b, "/sessions/skip", map[string]any{"key": "tone"})
	if res.IsError {
		t.Fatalf("skip failed: %s", resultText(t, res))
	}
	res = callTool(t, b, "/sessions/complete_interview", nil)
	if res.IsError {
		t.Fatalf("complete_interview failed: %s", resultText(t, res))
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.State != planning.StatePlanning {
		t.Errorf("state = %s, want planning", resp.Session.State)
	}
}

func TestBridgeReportsServerErrors(t *testing.T) {
	ts := newTestServer(t, controller.Options{})
	b := NewBridge(strings.TrimPrefix(ts.URL, "http://"), "missing")

	res := callTool(t, b, "/sessions/get", nil)
	if !res.IsError {
		t.Fatal("expected error result for unknown session")
	}
	if !strings.Contains(resultText(t, res), "not_found") {
		t.Errorf("error text = %q", resultText(t, res))
	}
}

func TestBridgeUnreachableServer(t *testing.T) {
	b := NewBridge("127.0.0.1:1", "s1")
	res := callTool(t, b, "/sessions/get", nil)
	if !res.IsError {
		t.Fatal("expected error result when the server is down")
	}
}

func TestBridgeListsTools(t *testing.T) {
	s := NewBridge("127.0.0.1:1", "s1").MCPServer()
	msg := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, name := range []string{"get_session", "answer_question", "skip_question", "complete_interview", "set_plan", "report_progress"} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Errorf("tools/list missing %s: %s", name, data)
		}
	}
}

func TestWriteMCPConfig(t *testing.T) {
	path := t.TempDir() + "/run/mcp-config.json"
	if err := WriteMCPConfig(path, "127.0.0.1:7420", "s1"); err != nil {
		t.Fatalf("WriteMCPConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var cfg struct {
		MCPServers map[string]struct {
			Command string   `json:"command"`
			Args    []string `json:"args"`
		} `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	srv, ok := cfg.MCPServers["compass"]
	if !ok {
		t.Fatalf("missing compass server: %s", data)
	}
	want := []string{"mcp", "--addr", "127.0.0.1:7420", "--session", "s1"}
	if strings.Join(srv.Args, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v, want %v", srv.Args, want)
	}
}
