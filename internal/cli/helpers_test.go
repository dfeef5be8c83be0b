package cli

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charliek/m3tail/internal/api"
	"github.com/charliek/m3tail/internal/fswatch"
	"github.com/charliek/m3tail/internal/ingest"
	"github.com/charliek/m3tail/internal/logs"
	"github.com/charliek/m3tail/internal/notify"
)

const (
	timeout = 5 * time.Second
	tick    = 10 * time.Millisecond
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestApp returns an App writing to buffers, with no config file in
// reach and colors off
func newTestApp(t *testing.T) (*App, *syncBuffer, *syncBuffer) {
	t.Helper()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	app := &App{
		configPath:          filepath.Join(t.TempDir(), "missing.yaml"),
		configExplicitlySet: true,
		noColor:             true,
		stdout:              stdout,
		stderr:              stderr,
	}
	return app, stdout, stderr
}

const sampleLog = `@2023-04-01T10:00:00Z [user, auth] #INFO: login ok
@2023-04-01T10:00:01Z [auth] #ERROR: login failed
@2023-04-01T10:00:02Z [storage] #ERROR: disk full
@2023-04-01T10:00:03Z [cache] #DEBUG: cache warm
`

// instance is a running API over a real store and controller
type instance struct {
	url   string
	store *logs.Store
	ctrl  *ingest.Controller
}

func startInstance(t *testing.T) *instance {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := logs.NewStore(logs.DefaultStoreConfig())
	notices := notify.NewCenter(logger, 50)
	diags := notify.NewDiagnostics(logger, 50)

	config := ingest.DefaultControllerConfig()
	config.Debounce = 0
	ctrl, err := ingest.New(fswatch.NewOS(logger), store, notices, diags, logger, config)
	require.NoError(t, err)

	handlers := api.NewHandlers(ctrl, notices, diags, logger, "")
	server := api.NewServer(api.ServerConfig{Host: "127.0.0.1"}, handlers, logger)
	ts := httptest.NewServer(server.Handler())

	t.Cleanup(func() {
		_ = ctrl.StopWatching()
		store.Close()
		ts.Close()
		notices.Close()
	})

	return &instance{url: ts.URL, store: store, ctrl: ctrl}
}

func (i *instance) seed(t *testing.T) {
	t.Helper()
	res := i.ctrl.IngestContent("test", sampleLog)
	require.Equal(t, 4, res.Accepted)
}

// remoteApp returns an App pointed at the instance
func remoteApp(t *testing.T, inst *instance) (*App, *syncBuffer, *syncBuffer) {
	t.Helper()
	app, stdout, stderr := newTestApp(t)
	app.apiAddr = inst.url
	app.apiAddrExplicitlySet = true
	return app, stdout, stderr
}
