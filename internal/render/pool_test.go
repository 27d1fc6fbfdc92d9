package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWorkerScript creates a fake worker the pool can spawn in place of
// the real render-worker binary.
func writeWorkerScript(t *testing.T, script string) []string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return []string{"/bin/sh", path}
}

func TestPoolSubmitSuccess(t *testing.T) {
	argv := writeWorkerScript(t, `#!/bin/sh
read input
echo '{"status": "ok", "output": "rendered text"}'
`)
	pool := NewPool(2, argv, time.Second)

	out, err := pool.Submit(context.Background(), Job{Template: "x"})
	require.NoError(t, err)
	assert.Equal(t, "rendered text", out)
}

func TestPoolSubmitWorkerError(t *testing.T) {
	argv := writeWorkerScript(t, `#!/bin/sh
read input
echo '{"status": "error", "error": "template exploded"}'
`)
	pool := NewPool(1, argv, time.Second)

	_, err := pool.Submit(context.Background(), Job{Template: "x"})
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "template exploded", rerr.Diagnostic)
}

func TestPoolSubmitTimeout(t *testing.T) {
	argv := writeWorkerScript(t, `#!/bin/sh
sleep 30
`)
	pool := NewPool(1, argv, 200*time.Millisecond)

	start := time.Now()
	_, err := pool.Submit(context.Background(), Job{Template: "x"})
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Less(t, time.Since(start), 5*time.Second, "teardown should not wait for the sleep")
}

func TestPoolTimeoutKillsWorkerTree(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "grandchild.pid")
	script := filepath.Join(dir, "worker.sh")

	// The sleep is a grandchild of the pool and inherits the stdout pipe.
	// If teardown only signalled the shell, the sleep would keep the pipe
	// open and stall Submit for its full runtime.
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
sleep 30 &
echo $! > "`+pidFile+`"
wait
`), 0o755))

	pool := NewPool(1, []string{"/bin/sh", script}, 200*time.Millisecond)

	start := time.Now()
	_, err := pool.Submit(context.Background(), Job{Template: "x"})
	require.ErrorIs(t, err, ErrTimedOut)
	assert.Less(t, time.Since(start), 200*time.Millisecond+terminationGracePeriod+2*time.Second,
		"teardown must finish within deadline plus grace")

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return syscall.Kill(pid, 0) != nil
	}, 2*time.Second, 50*time.Millisecond, "grandchild still running after teardown")
}

func TestPoolSlotReleasedAfterTimeout(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "worker.sh")
	marker := filepath.Join(dir, "ran")

	// Sleeps on first run, then answers normally once the marker exists.
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
if [ ! -f "`+marker+`" ]; then
  touch "`+marker+`"
  sleep 30
fi
read input
echo '{"status": "ok", "output": "second try"}'
`), 0o755))

	pool := NewPool(1, []string{"/bin/sh", script}, 200*time.Millisecond)

	_, err := pool.Submit(context.Background(), Job{Template: "x"})
	require.ErrorIs(t, err, ErrTimedOut)

	// The single slot must have been reclaimed.
	out, err := pool.Submit(context.Background(), Job{Template: "x"})
	require.NoError(t, err)
	assert.Equal(t, "second try", out)
}

func TestPoolSubmitGarbageOutput(t *testing.T) {
	argv := writeWorkerScript(t, `#!/bin/sh
read input
echo 'this is not json'
`)
	pool := NewPool(1, argv, time.Second)

	_, err := pool.Submit(context.Background(), Job{Template: "x"})
	var rerr *Error
	assert.ErrorAs(t, err, &rerr)
}

func TestPoolSubmitCrashedWorker(t *testing.T) {
	argv := writeWorkerScript(t, `#!/bin/sh
read input
exit 3
`)
	pool := NewPool(1, argv, time.Second)

	_, err := pool.Submit(context.Background(), Job{Template: "x"})
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Diagnostic, "exit 3")
}

func TestPoolSubmitCancelledContext(t *testing.T) {
	argv := writeWorkerScript(t, `#!/bin/sh
sleep 30
`)
	pool := NewPool(1, argv, 10*time.Second)

	// Occupy the only slot.
	go pool.Submit(context.Background(), Job{Template: "x"}) //nolint:errcheck

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := pool.Submit(ctx, Job{Template: "y"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPoolDefaults(t *testing.T) {
	pool := NewPool(0, nil, 0)
	assert.Equal(t, 4, pool.Size())
	assert.Equal(t, DefaultDeadline, pool.deadline)
	assert.NotEmpty(t, pool.workerArgv)
}
