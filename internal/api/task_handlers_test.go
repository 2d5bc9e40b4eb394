package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/remind-me/internal/effects"
	"github.com/ksred/remind-me/internal/services"
)

// taskEnvelope decodes a TaskResponse whose data is a single task
type taskEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    services.TaskView `json:"data"`
}

type listEnvelope struct {
	Success bool                  `json:"success"`
	Data    []services.TaskView   `json:"data"`
	Meta    services.ResponseMeta `json:"meta"`
}

func TestTaskEndpoints(t *testing.T) {
	server := setupTestServer(t, true)
	var createdID string

	t.Run("create task", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks", map[string]interface{}{
			"title": "Buy milk",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp taskEnvelope
		decodeBody(t, rec, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "Buy milk", resp.Data.Title)
		assert.Equal(t, "pending", string(resp.Data.State))
		assert.NotEmpty(t, resp.Data.ID)
		createdID = resp.Data.ID
	})

	t.Run("create task without title", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("create task with blank title", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks", map[string]interface{}{"title": "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get task", func(t *testing.T) {
		rec := server.do(t, http.MethodGet, "/api/v1/tasks/"+createdID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp taskEnvelope
		decodeBody(t, rec, &resp)
		assert.Equal(t, createdID, resp.Data.ID)
	})

	t.Run("get missing task", func(t *testing.T) {
		rec := server.do(t, http.MethodGet, "/api/v1/tasks/does-not-exist", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update task", func(t *testing.T) {
		at := testNow.Add(time.Hour)
		rec := server.do(t, http.MethodPatch, "/api/v1/tasks/"+createdID, map[string]interface{}{
			"title":          "Buy oat milk",
			"scheduled_time": at.Format(time.RFC3339),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp taskEnvelope
		decodeBody(t, rec, &resp)
		assert.Equal(t, "Buy oat milk", resp.Data.Title)
		require.NotNil(t, resp.Data.ScheduledTime)
		assert.True(t, resp.Data.ScheduledTime.Equal(at))
		assert.Equal(t, "scheduled", string(resp.Data.State))
	})

	t.Run("empty update", func(t *testing.T) {
		rec := server.do(t, http.MethodPatch, "/api/v1/tasks/"+createdID, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("complete task", func(t *testing.T) {
		server.recorder.Reset()

		rec := server.do(t, http.MethodPost, "/api/v1/tasks/"+createdID+"/complete", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp taskEnvelope
		decodeBody(t, rec, &resp)
		assert.True(t, resp.Data.Completed)
		assert.Equal(t, []effects.HapticKind{effects.HapticSelection}, server.recorder.Haptics())
	})

	t.Run("complete twice", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks/"+createdID+"/complete", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Len(t, server.recorder.Haptics(), 1, "no second haptic")
	})

	t.Run("reopen task", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks/"+createdID+"/reopen", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp taskEnvelope
		decodeBody(t, rec, &resp)
		assert.False(t, resp.Data.Completed)
		assert.Equal(t, "Buy oat milk", resp.Data.Title)
	})

	t.Run("reopen open task", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks/"+createdID+"/reopen", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("delete task", func(t *testing.T) {
		rec := server.do(t, http.MethodDelete, "/api/v1/tasks/"+createdID, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = server.do(t, http.MethodDelete, "/api/v1/tasks/"+createdID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = server.do(t, http.MethodPatch, "/api/v1/tasks/"+createdID, map[string]interface{}{"title": "gone"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListAndCheckDueEndpoints(t *testing.T) {
	server := setupTestServer(t, true)

	create := func(title string, at *time.Time) string {
		body := map[string]interface{}{"title": title}
		if at != nil {
			body["scheduled_time"] = at.Format(time.RFC3339Nano)
		}
		rec := server.do(t, http.MethodPost, "/api/v1/tasks", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp taskEnvelope
		decodeBody(t, rec, &resp)
		return resp.Data.ID
	}

	past := testNow.Add(-time.Second)
	future := testNow.Add(time.Hour)
	plainID := create("No reminder", nil)
	dueID := create("Pay rent", &past)
	create("Later", &future)

	rec := server.do(t, http.MethodPost, "/api/v1/tasks/"+plainID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("list in creation order", func(t *testing.T) {
		rec := server.do(t, http.MethodGet, "/api/v1/tasks", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listEnvelope
		decodeBody(t, rec, &resp)
		assert.Equal(t, 3, resp.Meta.Count)
		require.Len(t, resp.Data, 3)
		assert.Equal(t, plainID, resp.Data[0].ID)
		assert.Equal(t, "completed", string(resp.Data[0].State))
		assert.Equal(t, "due", string(resp.Data[1].State))
		assert.Equal(t, "scheduled", string(resp.Data[2].State))
	})

	t.Run("list incomplete first", func(t *testing.T) {
		rec := server.do(t, http.MethodGet, "/api/v1/tasks?incomplete_first=true", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listEnvelope
		decodeBody(t, rec, &resp)
		require.Len(t, resp.Data, 3)
		assert.Equal(t, dueID, resp.Data[0].ID)
		assert.Equal(t, plainID, resp.Data[2].ID)
	})

	t.Run("list with bad query", func(t *testing.T) {
		rec := server.do(t, http.MethodGet, "/api/v1/tasks?newest_first=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("check due notifies once", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks/check-due", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Data services.SweepResult `json:"data"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, []string{dueID}, resp.Data.Notified)
		assert.Equal(t, 3, resp.Data.Scanned)

		rec = server.do(t, http.MethodPost, "/api/v1/tasks/check-due", nil)
		decodeBody(t, rec, &resp)
		assert.Empty(t, resp.Data.Notified)
		assert.Len(t, server.recorder.NotifyDue(), 1)
	})

	t.Run("check due at an explicit instant", func(t *testing.T) {
		rec := server.do(t, http.MethodPost, "/api/v1/tasks/check-due", map[string]interface{}{
			"now": testNow.Add(2 * time.Hour).Format(time.RFC3339),
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, server.recorder.NotifyDue(), 2)
	})

	t.Run("stats", func(t *testing.T) {
		rec := server.do(t, http.MethodGet, "/api/v1/tasks/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats services.TaskStats
		decodeBody(t, rec, &stats)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 1, stats.ByState["completed"])
		assert.Equal(t, 1, stats.ByState["due"])
		assert.Equal(t, 1, stats.ByState["scheduled"])
	})
}

func TestCheckDueEndpoint_ChunkedBody(t *testing.T) {
	server := setupTestServer(t, true)

	at := testNow.Add(time.Hour)
	rec := server.do(t, http.MethodPost, "/api/v1/tasks", map[string]interface{}{
		"title":          "Stretch",
		"scheduled_time": at.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created taskEnvelope
	decodeBody(t, rec, &created)

	// Hiding the reader's type leaves ContentLength unknown, as with chunked encoding
	chunked := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/check-due", io.MultiReader(strings.NewReader(body)))
		req.Header.Set("Content-Type", "application/json")
		require.Equal(t, int64(-1), req.ContentLength)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)
		return rec
	}

	var resp struct {
		Data services.SweepResult `json:"data"`
	}

	t.Run("empty body uses the server clock", func(t *testing.T) {
		rec := chunked("")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decodeBody(t, rec, &resp)
		assert.Empty(t, resp.Data.Notified)
	})

	t.Run("body instant is honoured", func(t *testing.T) {
		rec := chunked(`{"now":"` + testNow.Add(2*time.Hour).Format(time.RFC3339) + `"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decodeBody(t, rec, &resp)
		assert.Equal(t, []string{created.Data.ID}, resp.Data.Notified)
		assert.Len(t, server.recorder.NotifyDue(), 1)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := chunked(`{"now":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
