package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/m3tail/internal/domain"
)

func do(t *testing.T, env *testEnv, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	env.server.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestGetStatus(t *testing.T) {
	env := defaultTestEnv(t)
	env.seed(t)
	env.store.SetLevelFilter("ERROR")

	w := do(t, env, "GET", "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decode[StatusResponse](t, w)
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, "v1", resp.APIVersion)
	assert.Equal(t, "m3tail.yaml", resp.ConfigFile)
	assert.Equal(t, 4, resp.TotalRecords)
	assert.Equal(t, 2, resp.VisibleRecords)
	assert.Equal(t, "ERROR", resp.Filter.Level)
	assert.Equal(t, []string{"*.log", "*.txt"}, resp.Include)
}

func TestHealthEndpoint(t *testing.T) {
	env := defaultTestEnv(t)

	w := do(t, env, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestGetLogs(t *testing.T) {
	env := defaultTestEnv(t)
	env.seed(t)

	t.Run("session view", func(t *testing.T) {
		w := do(t, env, "GET", "/api/v1/logs", "")
		assert.Equal(t, http.StatusOK, w.Code)

		resp := decode[LogsResponse](t, w)
		assert.Len(t, resp.Logs, 4)
		assert.Equal(t, 4, resp.FilteredCount)
		assert.Equal(t, 4, resp.TotalCount)
		assert.Equal(t, "@2023-04-01T10:00:00Z [user, auth] #INFO: login ok", resp.Logs[0].Line)
		assert.Equal(t, []string{"user", "auth"}, resp.Logs[0].Tags)
	})

	t.Run("lines limit keeps the newest", func(t *testing.T) {
		resp := decode[LogsResponse](t, do(t, env, "GET", "/api/v1/logs?lines=2", ""))
		require.Len(t, resp.Logs, 2)
		assert.Equal(t, "disk full", resp.Logs[0].Content)
		assert.Equal(t, 4, resp.FilteredCount)
	})

	t.Run("ad hoc filter", func(t *testing.T) {
		resp := decode[LogsResponse](t, do(t, env, "GET", "/api/v1/logs?level=ERROR&tags=auth", ""))
		require.Len(t, resp.Logs, 1)
		assert.Equal(t, "login failed", resp.Logs[0].Content)
		assert.Equal(t, 1, resp.FilteredCount)

		// Session criteria untouched
		assert.True(t, env.store.Criteria().IsEmpty())
	})

	t.Run("ad hoc search", func(t *testing.T) {
		resp := decode[LogsResponse](t, do(t, env, "GET", "/api/v1/logs?search=LOGIN", ""))
		assert.Len(t, resp.Logs, 2)
	})

	t.Run("session criteria applied", func(t *testing.T) {
		env.store.SetLevelFilter("DEBUG")
		defer env.store.SetLevelFilter("")

		resp := decode[LogsResponse](t, do(t, env, "GET", "/api/v1/logs", ""))
		require.Len(t, resp.Logs, 1)
		assert.Equal(t, "cache warm", resp.Logs[0].Content)
	})
}

func TestGetLogs_LinesParameter(t *testing.T) {
	env := defaultTestEnv(t)
	env.seed(t)

	for _, lines := range []string{"abc", "-5", "0", "999999"} {
		t.Run(lines, func(t *testing.T) {
			w := do(t, env, "GET", "/api/v1/logs?lines="+lines, "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Len(t, decode[LogsResponse](t, w).Logs, 4)
		})
	}
}

func TestIngestLogs(t *testing.T) {
	env := defaultTestEnv(t)

	body := sampleLog + "not a record\n" + "@2023-04-01T10:00:00Z [user, auth] #INFO: login ok\n"
	w := do(t, env, "POST", "/api/v1/logs", body)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decode[IngestResponse](t, w)
	assert.Equal(t, 6, resp.Lines)
	assert.Equal(t, 4, resp.Accepted)
	assert.Equal(t, 1, resp.Duplicates)
	assert.Equal(t, 1, resp.Malformed)

	assert.Equal(t, 1, env.diags.Count())
	assert.Equal(t, "api", env.diags.Recent(1)[0].Source)
}

func TestClearLogs(t *testing.T) {
	env := defaultTestEnv(t)
	env.seed(t)

	w := do(t, env, "POST", "/api/v1/logs/clear", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.store.Records())

	n, ok := env.notices.Latest()
	require.True(t, ok)
	assert.Equal(t, "logs cleared", n.Message)
}

func TestFilter(t *testing.T) {
	env := defaultTestEnv(t)
	env.seed(t)

	w := do(t, env, "PUT", "/api/v1/filter", `{"level":"ERROR","tags":["auth"]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	view := env.store.View()
	require.Len(t, view, 1)
	assert.Equal(t, "login failed", view[0].Content)

	resp := decode[FilterResponse](t, do(t, env, "GET", "/api/v1/filter", ""))
	assert.Equal(t, "ERROR", resp.Level)
	assert.Equal(t, []string{"auth"}, resp.Tags)
	assert.Empty(t, resp.Search)

	// Replace everything with an empty filter
	do(t, env, "PUT", "/api/v1/filter", `{}`)
	assert.Len(t, env.store.View(), 4)
}

func TestFilter_InvalidBody(t *testing.T) {
	env := defaultTestEnv(t)

	w := do(t, env, "PUT", "/api/v1/filter", `{"level":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidRequest, decode[ErrorResponse](t, w).Code)
}

func TestLevelsAndTags(t *testing.T) {
	env := defaultTestEnv(t)

	levels := decode[LevelsResponse](t, do(t, env, "GET", "/api/v1/levels", ""))
	assert.NotNil(t, levels.Levels)
	assert.Empty(t, levels.Levels)

	env.seed(t)

	levels = decode[LevelsResponse](t, do(t, env, "GET", "/api/v1/levels", ""))
	assert.Equal(t, []string{"DEBUG", "ERROR", "INFO"}, levels.Levels)

	tags := decode[TagsResponse](t, do(t, env, "GET", "/api/v1/tags", ""))
	assert.Equal(t, []string{"auth", "cache", "storage", "user"}, tags.Tags)
}

func TestWatchLifecycle(t *testing.T) {
	env := defaultTestEnv(t)
	require.NoError(t, afero.WriteFile(env.fs.mem, "/logs/app.log", []byte(sampleLog), 0o644))

	w := do(t, env, "POST", "/api/v1/watch", `{"path":"/logs"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[WatchResponse](t, w)
	assert.Equal(t, "watching", resp.State)
	assert.Equal(t, "/logs", resp.Path)
	assert.Len(t, env.store.Records(), 4)

	// Second start is a precondition failure
	w = do(t, env, "POST", "/api/v1/watch", `{"path":"/logs"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrCodePrecondition, decode[ErrorResponse](t, w).Code)

	w = do(t, env, "POST", "/api/v1/watch/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decode[WatchResponse](t, w).State)

	// Stop while idle is a no-op
	w = do(t, env, "POST", "/api/v1/watch/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartWatch_EmptyPath(t *testing.T) {
	env := defaultTestEnv(t)

	for _, body := range []string{"", `{}`, `{"path":""}`} {
		w := do(t, env, "POST", "/api/v1/watch", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, domain.ErrCodePrecondition, decode[ErrorResponse](t, w).Code)
	}
	assert.Equal(t, domain.WatchStateIdle, env.ctrl.State())
}

func TestStartWatch_RegistrationFailure(t *testing.T) {
	env := defaultTestEnv(t)
	env.fs.watchErr = errors.New("inotify limit reached")

	w := do(t, env, "POST", "/api/v1/watch", `{"path":"/logs"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, domain.ErrCodeWatchRegistration, decode[ErrorResponse](t, w).Code)
	assert.Equal(t, domain.WatchStateIdle, env.ctrl.State())
}

func TestStartWatch_InvalidBody(t *testing.T) {
	env := defaultTestEnv(t)

	w := do(t, env, "POST", "/api/v1/watch", `{"path":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiagnosticsAndNotices(t *testing.T) {
	env := defaultTestEnv(t)
	env.ctrl.IngestContent("upload.log", "bad line one\nbad line two\n")
	_ = env.ctrl.StartWatching(t.Context(), "")

	diags := decode[DiagnosticsResponse](t, do(t, env, "GET", "/api/v1/diagnostics", ""))
	require.Len(t, diags.Diagnostics, 2)
	assert.Equal(t, 2, diags.Diagnostics[1].Line)

	limited := decode[DiagnosticsResponse](t, do(t, env, "GET", "/api/v1/diagnostics?lines=1", ""))
	assert.Len(t, limited.Diagnostics, 1)

	notices := decode[NoticesResponse](t, do(t, env, "GET", "/api/v1/notices", ""))
	require.Len(t, notices.Notices, 1)
	assert.Equal(t, "watch path required", notices.Notices[0].Message)
}

func TestWriteError(t *testing.T) {
	env := defaultTestEnv(t)

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrPrecondition, http.StatusConflict, domain.ErrCodePrecondition},
		{domain.ErrWatchRegistration, http.StatusBadGateway, domain.ErrCodeWatchRegistration},
		{domain.ErrFormat, http.StatusBadRequest, domain.ErrCodeFormat},
		{domain.ErrNotFound, http.StatusNotFound, domain.ErrCodeNotFound},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.server.handlers.writeError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestWriteError_SanitizesInternal(t *testing.T) {
	env := defaultTestEnv(t)

	w := httptest.NewRecorder()
	env.server.handlers.writeError(w, errors.New("open /secret/path: permission denied"))

	resp := decode[ErrorResponse](t, w)
	assert.NotContains(t, resp.Error, "/secret/path")
}

func TestShutdown(t *testing.T) {
	env := defaultTestEnv(t)

	w := do(t, env, "POST", "/api/v1/shutdown", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrCodePrecondition, decode[ErrorResponse](t, w).Code)

	called := make(chan struct{})
	env.server.handlers.OnShutdown(func() { close(called) })

	w = do(t, env, "POST", "/api/v1/shutdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[SuccessResponse](t, w).Success)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown function not called")
	}
}
