package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tsukumo-bot/tsukumo/internal/log"
)

const (
	// DefaultDeadline bounds a single render job's wall-clock time.
	DefaultDeadline = 5 * time.Second

	// terminationGracePeriod is the time we wait after SIGTERM before
	// sending SIGKILL.
	terminationGracePeriod = 2 * time.Second
)

// Job is one render submission. It has no identity beyond the single
// invocation: the pool assigns a throwaway ID for logging and protocol
// correlation.
type Job struct {
	Template string
	Bindings Bindings
}

// Pool runs render jobs in isolated worker processes. A fixed number of
// slots bounds concurrency; every submission, whether it completes, errors,
// or times out, returns its slot to the pool.
type Pool struct {
	workerArgv []string
	deadline   time.Duration
	slots      chan struct{}
	logger     *slog.Logger
}

// NewPool creates a pool of size worker slots. workerArgv is the command
// spawned per job; it must read one request on stdin and write one response
// to stdout. An empty argv re-executes the current binary in render-worker
// mode. deadline <= 0 applies DefaultDeadline.
func NewPool(size int, workerArgv []string, deadline time.Duration) *Pool {
	if size <= 0 {
		size = 4
	}
	if len(workerArgv) == 0 {
		workerArgv = []string{selfExecutable(), "render-worker"}
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	slots := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		slots <- struct{}{}
	}

	return &Pool{
		workerArgv: workerArgv,
		deadline:   deadline,
		slots:      slots,
		logger:     log.WithComponent("renderpool"),
	}
}

// Size returns the number of worker slots.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Submit runs a job in a worker process and returns the rendered text.
// Failures are either *Error (the template failed to evaluate), ErrTimedOut
// (the deadline passed and the worker was torn down), or an infrastructure
// error from spawning itself.
func (p *Pool) Submit(ctx context.Context, job Job) (string, error) {
	select {
	case <-p.slots:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { p.slots <- struct{}{} }()

	jobID := uuid.NewString()
	logger := log.WithJob(jobID)

	req := &Request{
		Protocol:   1,
		JobID:      jobID,
		Template:   job.Template,
		Bindings:   job.Bindings,
		DeadlineAt: time.Now().Add(p.deadline),
	}

	resp, err := p.spawnWorker(ctx, req, logger)
	if err != nil {
		return "", err
	}
	if resp.Status == "error" {
		return "", NewError(resp.Error)
	}
	return resp.Output, nil
}

// spawnWorker spawns the worker subprocess, writes the request to stdin,
// and reads the response from stdout. On deadline it walks the SIGTERM,
// grace period, SIGKILL ladder and returns ErrTimedOut.
func (p *Pool) spawnWorker(ctx context.Context, req *Request, logger *slog.Logger) (*Response, error) {
	timeoutTimer := time.NewTimer(p.deadline)
	defer timeoutTimer.Stop()

	// Don't use CommandContext - we manage termination ourselves.
	cmd := exec.Command(p.workerArgv[0], p.workerArgv[1:]...)

	// The worker gets its own process group so the termination ladder kills
	// its whole tree. A surviving grandchild inherits the stdout pipe and
	// keeps Wait blocked long past the grace period; WaitDelay bounds Wait
	// even if one escapes the group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = terminationGracePeriod

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("spawning render worker", "argv", p.workerArgv, "deadline", p.deadline)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		writeErr <- EncodeRequest(stdin, req)
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case <-timeoutTimer.C:
		logger.Warn("render timed out, sending SIGTERM")
		p.signalWorkerGroup(cmd, syscall.SIGTERM, logger)

		grace := time.NewTimer(terminationGracePeriod)
		defer grace.Stop()

		select {
		case <-waitErr:
			logger.Info("worker exited after SIGTERM")
		case <-grace.C:
			logger.Warn("worker did not exit after SIGTERM, sending SIGKILL")
			p.signalWorkerGroup(cmd, syscall.SIGKILL, logger)
			<-waitErr // Wait for the process to die before reusing the slot.
		}
		return nil, ErrTimedOut

	case err := <-waitErr:
		if werr := <-writeErr; werr != nil {
			return nil, fmt.Errorf("write request: %w", werr)
		}

		// A crashed worker is a render failure, not a dispatcher failure.
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				logger.Warn("worker exited with non-zero status", "exit_code", exitErr.ExitCode())
				if stdout.Len() == 0 {
					return nil, NewError(fmt.Sprintf("worker crashed (exit %d)", exitErr.ExitCode()))
				}
			} else {
				return nil, fmt.Errorf("wait for worker: %w", err)
			}
		}

		resp, err := DecodeResponse(bytes.NewReader(stdout.Bytes()))
		if err != nil {
			logger.Error("failed to decode worker response", "error", err)
			return nil, NewError(err.Error())
		}
		return resp, nil
	}
}

// signalWorkerGroup delivers sig to the worker's process group. Falls back
// to the direct child if the group signal fails (it may already be gone).
func (p *Pool) signalWorkerGroup(cmd *exec.Cmd, sig syscall.Signal, logger *slog.Logger) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		logger.Error("failed to signal worker group", "signal", sig, "error", err)
		if err := cmd.Process.Signal(sig); err != nil {
			logger.Error("failed to signal worker", "signal", sig, "error", err)
		}
	}
}

func selfExecutable() string {
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return exe
}
