package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/remind-me/internal/database"
	"github.com/ksred/remind-me/internal/database/migrations"
	"github.com/ksred/remind-me/internal/effects"
	"github.com/ksred/remind-me/internal/effects/effectstest"
	"github.com/ksred/remind-me/internal/services"
	"github.com/ksred/remind-me/internal/utils"
)

var dbCounter atomic.Int64

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (*Server, *effectstest.Recorder) {
	t.Helper()

	logger := zerolog.Nop()
	db := database.NewDatabase(map[string]interface{}{
		"path":           fmt.Sprintf("file:mcp_%d?mode=memory&cache=shared", dbCounter.Add(1)),
		"max_open_conns": 1,
	})
	require.NoError(t, db.Connect())
	t.Cleanup(func() { _ = db.Close() })
	_, err := db.Migrate(context.Background(), migrations.Catalog(), logger)
	require.NoError(t, err)

	clock := func() time.Time { return testNow }
	recorder := &effectstest.Recorder{}
	service := services.NewTaskService(
		database.NewTaskStore(db, logger).WithClock(clock),
		recorder,
		logger,
		services.WithClock(clock),
	)

	server, err := NewServer(service, logger)
	require.NoError(t, err)
	return server, recorder
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// createTask creates a task through the handler and returns its ID
func createTask(t *testing.T, s *Server, args map[string]interface{}) string {
	t.Helper()
	resp, err := s.handler.HandleCreateTask(context.Background(), rawJSON(t, args))
	require.NoError(t, err)
	require.True(t, resp.Success)
	return resp.Data.(services.TaskView).ID
}

func TestHandler_CreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("With schedule", func(t *testing.T) {
		s, recorder := setupTestServer(t)

		resp, err := s.handler.HandleCreateTask(ctx, json.RawMessage(`{"title":"Pay rent","scheduled_time":"2026-10-19T10:00:00+01:00"}`))
		require.NoError(t, err)
		require.True(t, resp.Success)

		view := resp.Data.(services.TaskView)
		assert.NotEmpty(t, view.ID)
		assert.Equal(t, "Pay rent", view.Title)
		require.NotNil(t, view.ScheduledTime)
		assert.True(t, view.ScheduledTime.Equal(testNow), "10:00+01:00 is 09:00Z")
		assert.Equal(t, "due", string(view.State))
		assert.Empty(t, recorder.Effects())
	})

	t.Run("Missing title", func(t *testing.T) {
		s, _ := setupTestServer(t)

		_, err := s.handler.HandleCreateTask(ctx, json.RawMessage(`{"title":"  "}`))
		require.Error(t, err)
		assert.True(t, utils.IsValidationError(err))
	})

	t.Run("Malformed time", func(t *testing.T) {
		s, _ := setupTestServer(t)

		_, err := s.handler.HandleCreateTask(ctx, json.RawMessage(`{"title":"x","scheduled_time":"tomorrow"}`))
		require.Error(t, err)
		assert.True(t, utils.IsValidationError(err))
	})
}

func TestHandler_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, recorder := setupTestServer(t)

	id := createTask(t, s, map[string]interface{}{"title": "Water plants"})
	idArgs := rawJSON(t, map[string]string{"id": id})

	resp, err := s.handler.HandleCompleteTask(ctx, idArgs)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(resp.Data.(services.TaskView).State))
	assert.Equal(t, []effects.HapticKind{effects.HapticSelection}, recorder.Haptics())

	_, err = s.handler.HandleCompleteTask(ctx, idArgs)
	assert.True(t, utils.IsAlreadyCompletedError(err))

	resp, err = s.handler.HandleReopenTask(ctx, idArgs)
	require.NoError(t, err)
	view := resp.Data.(services.TaskView)
	assert.False(t, view.Completed)
	assert.Equal(t, "Water plants", view.Title)

	_, err = s.handler.HandleReopenTask(ctx, idArgs)
	assert.True(t, utils.IsNotCompletedError(err))

	resp, err = s.handler.HandleUpdateTask(ctx, rawJSON(t, map[string]interface{}{"id": id, "title": "Water the plants"}))
	require.NoError(t, err)
	assert.Equal(t, "Water the plants", resp.Data.(services.TaskView).Title)

	resp, err = s.handler.HandleDeleteTask(ctx, idArgs)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	_, err = s.handler.HandleUpdateTask(ctx, rawJSON(t, map[string]interface{}{"id": id, "title": "gone"}))
	assert.True(t, utils.IsNotFoundError(err))

	_, err = s.handler.HandleDeleteTask(ctx, json.RawMessage(`{}`))
	assert.True(t, utils.IsValidationError(err))
}

func TestHandler_ListAndCheckDue(t *testing.T) {
	ctx := context.Background()
	s, recorder := setupTestServer(t)

	createTask(t, s, map[string]interface{}{"title": "No reminder"})
	dueID := createTask(t, s, map[string]interface{}{
		"title":          "Pay rent",
		"scheduled_time": testNow.Add(-time.Second).Format(time.RFC3339),
	})
	createTask(t, s, map[string]interface{}{
		"title":          "Later",
		"scheduled_time": testNow.Add(time.Hour).Format(time.RFC3339),
	})

	resp, err := s.handler.HandleListTasks(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 3, *resp.Count)

	resp, err = s.handler.HandleCheckDue(ctx, nil)
	require.NoError(t, err)
	result := resp.Data.(*services.SweepResult)
	assert.Equal(t, []string{dueID}, result.Notified)
	require.Len(t, recorder.NotifyDue(), 1)

	// Checking at a later instant picks up the second reminder only
	resp, err = s.handler.HandleCheckDue(ctx, rawJSON(t, map[string]string{"now": testNow.Add(2 * time.Hour).Format(time.RFC3339)}))
	require.NoError(t, err)
	assert.Len(t, resp.Data.(*services.SweepResult).Notified, 1)
	assert.Len(t, recorder.NotifyDue(), 2)

	statsJSON, err := s.handler.HandleStats(ctx)
	require.NoError(t, err)
	var stats services.TaskStats
	require.NoError(t, json.Unmarshal(statsJSON, &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Scheduled)
}

// rpc sends one JSON-RPC message through the MCP server and decodes the reply
func rpc(t *testing.T, s *Server, method string, params interface{}) map[string]interface{} {
	t.Helper()

	msg := rawJSON(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	reply := s.MCPServer().HandleMessage(context.Background(), msg)
	require.NotNil(t, reply)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rawJSON(t, reply), &decoded))
	return decoded
}

func TestServer_JSONRPC(t *testing.T) {
	s, _ := setupTestServer(t)

	t.Run("Lists the task tools", func(t *testing.T) {
		reply := rpc(t, s, "tools/list", map[string]interface{}{})
		result := reply["result"].(map[string]interface{})
		tools := result["tools"].([]interface{})

		var names []string
		for _, tool := range tools {
			names = append(names, tool.(map[string]interface{})["name"].(string))
		}
		assert.ElementsMatch(t, []string{
			"create_task", "update_task", "complete_task", "reopen_task",
			"delete_task", "list_tasks", "check_due",
		}, names)
	})

	t.Run("Tool errors are results, not protocol errors", func(t *testing.T) {
		reply := rpc(t, s, "tools/call", map[string]interface{}{
			"name":      "complete_task",
			"arguments": map[string]string{"id": "missing"},
		})
		require.Nil(t, reply["error"])
		result := reply["result"].(map[string]interface{})
		assert.Equal(t, true, result["isError"])

		text := result["content"].([]interface{})[0].(map[string]interface{})["text"].(string)
		var resp ToolResponse
		require.NoError(t, json.Unmarshal([]byte(text), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "not found")
	})

	t.Run("Creates through tools/call", func(t *testing.T) {
		reply := rpc(t, s, "tools/call", map[string]interface{}{
			"name":      "create_task",
			"arguments": map[string]string{"title": "Via JSON-RPC"},
		})
		result := reply["result"].(map[string]interface{})
		assert.NotEqual(t, true, result["isError"])
	})

	t.Run("Reads the stats resource", func(t *testing.T) {
		reply := rpc(t, s, "resources/read", map[string]string{"uri": StatsResourceURI})
		result := reply["result"].(map[string]interface{})
		contents := result["contents"].([]interface{})
		require.Len(t, contents, 1)
		assert.Equal(t, StatsResourceURI, contents[0].(map[string]interface{})["uri"])
	})
}

func TestNotificationChannel(t *testing.T) {
	s, _ := setupTestServer(t)
	ch := NewNotificationChannel(s)
	at := testNow

	// No sessions are registered; broadcasting is a no-op
	assert.NoError(t, ch.SendNotification(context.Background(), effects.Notification{Title: "Pay rent", Body: "Reminder", ScheduledAt: &at}))
	assert.NoError(t, ch.TriggerHaptic(context.Background(), effects.HapticSelection))
}

func TestToolResponse(t *testing.T) {
	resp := NewSuccessResponse("ok", map[string]int{"n": 1}).WithCount(1)
	data, err := resp.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok","data":{"n":1},"count":1}`, string(data))

	data, err = NewErrorResponse("boom").ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, string(data))
}
