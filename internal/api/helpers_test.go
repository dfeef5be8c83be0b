package api

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/fswatch"
	"github.com/charliek/m3tail/internal/ingest"
	"github.com/charliek/m3tail/internal/logs"
	"github.com/charliek/m3tail/internal/notify"
)

// memFS serves reads from memory and accepts watch registrations without
// touching the operating system
type memFS struct {
	*fswatch.FS
	mem afero.Fs

	mu       sync.Mutex
	watchErr error
}

func (m *memFS) Watch(string, domain.WatchOptions, func(domain.WatchEvent)) (fswatch.CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	return func() {}, nil
}

type testEnv struct {
	server  *Server
	store   *logs.Store
	ctrl    *ingest.Controller
	fs      *memFS
	notices *notify.Center
	diags   *notify.Diagnostics
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	mem := afero.NewMemMapFs()
	fsys := &memFS{FS: fswatch.New(mem, logger), mem: mem}

	store := logs.NewStore(logs.DefaultStoreConfig())
	notices := notify.NewCenter(logger, 50)
	diags := notify.NewDiagnostics(logger, 50)

	ctrl, err := ingest.New(fsys, store, notices, diags, logger, ingest.DefaultControllerConfig())
	require.NoError(t, err)

	handlers := NewHandlers(ctrl, notices, diags, logger, "m3tail.yaml")
	server := NewServer(cfg, handlers, logger)

	t.Cleanup(func() {
		_ = ctrl.StopWatching()
		store.Close()
		notices.Close()
	})

	return &testEnv{
		server:  server,
		store:   store,
		ctrl:    ctrl,
		fs:      fsys,
		notices: notices,
		diags:   diags,
	}
}

func defaultTestEnv(t *testing.T) *testEnv {
	return newTestEnv(t, ServerConfig{Host: "127.0.0.1", Port: 0})
}

const sampleLog = `@2023-04-01T10:00:00Z [user, auth] #INFO: login ok
@2023-04-01T10:00:01Z [auth] #ERROR: login failed
@2023-04-01T10:00:02Z [storage] #ERROR: disk full
@2023-04-01T10:00:03Z [cache] #DEBUG: cache warm
`

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	res := e.ctrl.IngestContent("test", sampleLog)
	require.Equal(t, 4, res.Accepted)
}
