package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/telecode/internal/types"
)

var (
	// ErrSessionBusy means an execution is already in flight for the
	// session; concurrent submissions are rejected, never queued.
	ErrSessionBusy = errors.New("session busy")

	// ErrExecution wraps process-spawn failures (missing interpreter,
	// permission denied). A timeout is not an ErrExecution.
	ErrExecution = errors.New("execution failed")
)

// ExecutorConfig bounds every execution.
type ExecutorConfig struct {
	Timeout       time.Duration
	MaxOutput     int
	MaxConcurrent int64
	EnvAllowlist  []string
}

// Executor spawns validated commands as child processes inside a session's
// working directory. One execution per session is in flight at a time;
// executions for different sessions run concurrently up to a global cap.
type Executor struct {
	timeout   time.Duration
	maxOutput int
	env       []string
	sem       *semaphore.Weighted

	mu       sync.Mutex
	inflight map[types.SessionID]struct{}
}

// NewExecutor creates an Executor. The child environment is built once from
// the allow-list; secrets in the parent environment never leak through.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = 64 * 1024
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Executor{
		timeout:   cfg.Timeout,
		maxOutput: cfg.MaxOutput,
		env:       buildEnv(cfg.EnvAllowlist),
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		inflight:  make(map[types.SessionID]struct{}),
	}
}

// buildEnv copies only allow-listed variables from the parent environment.
// A name ending in "*" matches by prefix (e.g. "GIT_*").
func buildEnv(allowlist []string) []string {
	var env []string
	for _, name := range allowlist {
		if prefix, ok := strings.CutSuffix(name, "*"); ok {
			for _, kv := range os.Environ() {
				if strings.HasPrefix(kv, prefix) {
					env = append(env, kv)
				}
			}
			continue
		}
		if val, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+val)
		}
	}
	return env
}

// Execute runs the command in the session's working directory and blocks
// until it finishes or the wall-clock timeout expires. On timeout the whole
// process group is killed and the result carries TimedOut with the sentinel
// exit code; a timeout is a reported outcome, not an error. The command
// must already have passed validation.
func (e *Executor) Execute(ctx context.Context, sess *types.Session, text string) (*types.CommandResult, error) {
	e.mu.Lock()
	if _, busy := e.inflight[sess.ID]; busy {
		e.mu.Unlock()
		return nil, ErrSessionBusy
	}
	e.inflight[sess.ID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, sess.ID)
		e.mu.Unlock()
	}()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	defer e.sem.Release(1)

	cmd := exec.Command("bash", "-c", text)
	cmd.Dir = sess.WorkingDir
	cmd.Env = e.env
	setProcGroup(cmd)

	stdout := newCapWriter(e.maxOutput)
	stderr := newCapWriter(e.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start command: %v", ErrExecution, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	result := &types.CommandResult{}
	select {
	case err := <-done:
		result.ExitCode = exitCode(err)
	case <-timer.C:
		killGroup(cmd)
		<-done
		result.TimedOut = true
		result.ExitCode = types.TimeoutExitCode
		slog.Warn("command timed out", "session_id", sess.ID, "timeout", e.timeout)
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		return nil, fmt.Errorf("%w: %v", ErrExecution, ctx.Err())
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	slog.Debug("command finished",
		"session_id", sess.ID,
		"exit_code", result.ExitCode,
		"timed_out", result.TimedOut,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// exitCode extracts the child's exit status from cmd.Wait's error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return types.TimeoutExitCode
}

// TruncationMarker is appended to captured output that hit the byte cap.
const TruncationMarker = "\n... [output truncated]"

// capWriter collects up to limit bytes and silently discards the rest,
// recording that truncation happened.
type capWriter struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newCapWriter(limit int) *capWriter {
	return &capWriter{limit: limit}
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if remaining := w.limit - len(w.buf); remaining > 0 {
		if len(p) > remaining {
			w.buf = append(w.buf, p[:remaining]...)
			w.truncated = true
		} else {
			w.buf = append(w.buf, p...)
		}
	} else if len(p) > 0 {
		w.truncated = true
	}
	// Report full consumption so the child never sees a write error.
	return len(p), nil
}

func (w *capWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.truncated {
		return string(w.buf) + TruncationMarker
	}
	return string(w.buf)
}
