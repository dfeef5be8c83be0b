package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/m3tail/internal/constants"
)

func bulkLog(from, n int) string {
	var b strings.Builder
	base := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)
	for i := from; i < from+n; i++ {
		ts := base.Add(time.Duration(i) * time.Second).Format("2006-01-02T15:04:05Z")
		fmt.Fprintf(&b, "@%s [bulk] #INFO: entry-%05d\n", ts, i)
	}
	return b.String()
}

// runWatch starts cmdWatch without the API and returns a stop function
// that cancels it and yields its exit code
func runWatch(t *testing.T, app *App, dir string) func() int {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	code := make(chan int, 1)
	go func() {
		code <- app.cmdWatch(ctx, dir, watchOptions{noAPI: true, debounce: 20 * time.Millisecond})
	}()

	var once bool
	var result int
	stop := func() int {
		if once {
			return result
		}
		once = true
		cancel()
		select {
		case result = <-code:
		case <-time.After(timeout):
			t.Fatal("watch did not exit")
		}
		return result
	}
	t.Cleanup(func() { stop() })
	return stop
}

func TestCmdWatch_PrintsWholeBulkLoad(t *testing.T) {
	dir := t.TempDir()
	total := constants.DefaultSubscriptionBuffer * 20
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.log"), []byte(bulkLog(0, total)), 0o644))

	app, stdout, stderr := newTestApp(t)
	stop := runWatch(t, app, dir)

	require.Eventually(t, func() bool {
		return strings.Count(stdout.String(), "entry-") == total
	}, timeout, tick)

	require.Equal(t, 0, stop())
	out := stdout.String()
	assert.Equal(t, total, strings.Count(out, "entry-"))
	assert.Contains(t, out, "entry-00000")
	assert.Contains(t, out, fmt.Sprintf("entry-%05d", total-1))
	assert.NotContains(t, stderr.String(), "skipped")
}

func TestCmdWatch_FollowsAfterLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte(bulkLog(0, 3)), 0o644))

	app, stdout, _ := newTestApp(t)
	stop := runWatch(t, app, dir)

	require.Eventually(t, func() bool {
		return strings.Count(stdout.String(), "entry-") == 3
	}, timeout, tick)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(bulkLog(3, 2))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "entry-00004")
	}, timeout, tick)

	require.Equal(t, 0, stop())
	// Records already printed from the load are not repeated
	assert.Equal(t, 5, strings.Count(stdout.String(), "entry-"))
}
