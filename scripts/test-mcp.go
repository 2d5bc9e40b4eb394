// Smoke test for the stdio MCP server.
//
//	go run ./scripts/test-mcp.go [path/to/remind-me]
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// MCP JSON-RPC structures
type MCPRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func main() {
	fmt.Println("🧪 remind-me MCP smoke test")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	binaryPath := "../remind-me"
	if len(os.Args) > 1 {
		binaryPath = os.Args[1]
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		fmt.Printf("❌ Binary not found at %s. Run 'go build -o remind-me ./cmd' first.\n", binaryPath)
		os.Exit(1)
	}

	dataDir, err := os.MkdirTemp("", "remind-me-smoke")
	if err != nil {
		fmt.Printf("❌ Failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dataDir)

	tester := &MCPTester{binaryPath: binaryPath, dataDir: dataDir}
	if err := tester.RunTests(); err != nil {
		fmt.Printf("❌ Test failed: %v\n", err)
		os.RemoveAll(dataDir)
		os.Exit(1)
	}

	fmt.Println("✅ All tests passed!")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// MCPTester drives a remind-me process over stdin/stdout against a scratch database
type MCPTester struct {
	binaryPath string
	dataDir    string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	nextID int

	taskID string
}

func (t *MCPTester) RunTests() error {
	fmt.Println("🚀 Starting MCP server...")
	if err := t.startServer(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer t.cleanup()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Initialize connection", t.testInitialize},
		{"List tools", t.testListTools},
		{"Create task", t.testCreateTask},
		{"List tasks", t.testListTasks},
		{"Check due tasks", t.testCheckDue},
		{"Complete task", t.testCompleteTask},
		{"Complete task twice", t.testCompleteTwice},
		{"Delete task", t.testDeleteTask},
	}

	for _, test := range tests {
		fmt.Printf("🧪 %s... ", test.name)
		if err := test.fn(); err != nil {
			fmt.Printf("❌ FAILED\n")
			return fmt.Errorf("test '%s' failed: %w", test.name, err)
		}
		fmt.Printf("✅ PASSED\n")
	}

	return nil
}

func (t *MCPTester) startServer() error {
	t.cmd = exec.Command(t.binaryPath, "mcp")
	t.cmd.Env = append(os.Environ(),
		"REMIND_ME_DB="+filepath.Join(t.dataDir, "tasks.db"),
		"REMIND_ME_SERVER_LOG_FILE="+filepath.Join(t.dataDir, "remind-me.log"),
		"REMIND_ME_SCHEDULER_ENABLED=false",
	)

	stdin, err := t.cmd.StdinPipe()
	if err != nil {
		return err
	}
	t.stdin = stdin

	stdout, err := t.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	t.reader = bufio.NewReaderSize(stdout, 1<<20)

	return t.cmd.Start()
}

func (t *MCPTester) cleanup() {
	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		t.cmd.Process.Kill()
		t.cmd.Wait()
	}
}

// call sends one request and returns the response with the same id. Server
// notifications interleaved on stdout are skipped.
func (t *MCPTester) call(method string, params interface{}) (*MCPResponse, error) {
	t.nextID++
	req := MCPRequest{JSONRPC: "2.0", ID: t.nextID, Method: method, Params: params}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := t.stdin.Write(append(reqBytes, '\n')); err != nil {
		return nil, err
	}

	type result struct {
		resp *MCPResponse
		err  error
	}
	done := make(chan result, 1)

	go func() {
		for {
			line, err := t.reader.ReadString('\n')
			if err != nil {
				done <- result{err: fmt.Errorf("read error: %w", err)}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var resp MCPResponse
			if err := json.Unmarshal([]byte(line), &resp); err != nil {
				done <- result{err: fmt.Errorf("failed to parse response %q: %w", line, err)}
				return
			}
			if resp.ID != req.ID {
				continue
			}
			done <- result{resp: &resp}
			return
		}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, fmt.Errorf("%s failed: %s", method, r.resp.Error.Message)
		}
		return r.resp, nil
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("timeout waiting for %s", method)
	}
}

// callTool invokes a tool and decodes the JSON text of its first content item
func (t *MCPTester) callTool(name string, args map[string]interface{}) (map[string]interface{}, bool, error) {
	resp, err := t.call("tools/call", ToolCallParams{Name: name, Arguments: args})
	if err != nil {
		return nil, false, err
	}

	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("unexpected result: %w", err)
	}
	if len(result.Content) == 0 {
		return nil, result.IsError, fmt.Errorf("no content in %s response", name)
	}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &body); err != nil {
		return nil, result.IsError, fmt.Errorf("failed to parse %s response: %w", name, err)
	}
	return body, result.IsError, nil
}

func (t *MCPTester) testInitialize() error {
	resp, err := t.call("initialize", InitializeParams{
		ProtocolVersion: "2024-11-05",
		Capabilities:    map[string]interface{}{"tools": map[string]interface{}{}},
		ClientInfo:      ClientInfo{Name: "smoke-test", Version: "1.0.0"},
	})
	if err != nil {
		return err
	}
	if resp.Result == nil {
		return fmt.Errorf("no result in initialize response")
	}

	notification, _ := json.Marshal(map[string]string{"jsonrpc": "2.0", "method": "notifications/initialized"})
	_, err = t.stdin.Write(append(notification, '\n'))
	return err
}

func (t *MCPTester) testListTools() error {
	resp, err := t.call("tools/list", map[string]interface{}{})
	if err != nil {
		return err
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected result type")
	}
	tools, ok := result["tools"].([]interface{})
	if !ok {
		return fmt.Errorf("no tools array in response")
	}

	found := make(map[string]bool)
	for _, tool := range tools {
		if toolMap, ok := tool.(map[string]interface{}); ok {
			if name, ok := toolMap["name"].(string); ok {
				found[name] = true
			}
		}
	}

	for _, expected := range []string{"create_task", "update_task", "complete_task", "reopen_task", "delete_task", "list_tasks", "check_due"} {
		if !found[expected] {
			return fmt.Errorf("missing tool: %s", expected)
		}
	}
	return nil
}

func (t *MCPTester) testCreateTask() error {
	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	body, isError, err := t.callTool("create_task", map[string]interface{}{
		"title":          "Smoke test reminder",
		"scheduled_time": past,
	})
	if err != nil {
		return err
	}
	if isError || body["success"] != true {
		return fmt.Errorf("create_task did not succeed: %v", body)
	}

	data, _ := body["data"].(map[string]interface{})
	id, _ := data["id"].(string)
	if id == "" {
		return fmt.Errorf("create_task returned no id")
	}
	t.taskID = id
	return nil
}

func (t *MCPTester) testListTasks() error {
	body, _, err := t.callTool("list_tasks", map[string]interface{}{"incomplete_first": true})
	if err != nil {
		return err
	}

	tasks, _ := body["data"].([]interface{})
	for _, task := range tasks {
		if taskMap, ok := task.(map[string]interface{}); ok && taskMap["id"] == t.taskID {
			return nil
		}
	}
	return fmt.Errorf("created task not listed")
}

func (t *MCPTester) testCheckDue() error {
	body, _, err := t.callTool("check_due", nil)
	if err != nil {
		return err
	}

	data, _ := body["data"].(map[string]interface{})
	notified, _ := data["notified"].([]interface{})
	if len(notified) != 1 || notified[0] != t.taskID {
		return fmt.Errorf("expected %s to be notified, got %v", t.taskID, notified)
	}

	// A second sweep must not notify again
	body, _, err = t.callTool("check_due", nil)
	if err != nil {
		return err
	}
	data, _ = body["data"].(map[string]interface{})
	if notified, _ := data["notified"].([]interface{}); len(notified) != 0 {
		return fmt.Errorf("task notified twice: %v", notified)
	}
	return nil
}

func (t *MCPTester) testCompleteTask() error {
	body, isError, err := t.callTool("complete_task", map[string]interface{}{"id": t.taskID})
	if err != nil {
		return err
	}
	if isError {
		return fmt.Errorf("complete_task failed: %v", body)
	}
	return nil
}

func (t *MCPTester) testCompleteTwice() error {
	_, isError, err := t.callTool("complete_task", map[string]interface{}{"id": t.taskID})
	if err != nil {
		return err
	}
	if !isError {
		return fmt.Errorf("completing a completed task should fail")
	}
	return nil
}

func (t *MCPTester) testDeleteTask() error {
	_, isError, err := t.callTool("delete_task", map[string]interface{}{"id": t.taskID})
	if err != nil {
		return err
	}
	if isError {
		return fmt.Errorf("delete_task failed")
	}

	_, isError, err = t.callTool("delete_task", map[string]interface{}{"id": t.taskID})
	if err != nil {
		return err
	}
	if !isError {
		return fmt.Errorf("deleting a missing task should fail")
	}
	return nil
}
