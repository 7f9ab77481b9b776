package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// outputTailBytes bounds how much combined output we keep from a
// blocking run. Only the tail is useful for diagnosing failures.
const outputTailBytes = 8 * 1024

// ExitResult describes how a started worker process ended.
type ExitResult struct {
	PID      int
	ExitCode int
	Err      error
}

// Handle tracks a started worker. Done receives exactly one ExitResult
// when the process exits.
type Handle struct {
	PID  int
	Done <-chan ExitResult
}

// CommandRunner abstracts process execution so the launcher can be
// tested without spawning real processes.
type CommandRunner interface {
	// RunBlocking runs the command to completion and returns the tail of
	// its combined output alongside any failure.
	RunBlocking(ctx context.Context, bin string, args []string, env []string) (string, error)

	// Start launches the command without waiting for it. The returned
	// handle reports the exit asynchronously.
	Start(bin string, args []string, env []string, detach bool) (*Handle, error)
}

type execRunner struct{}

// NewExecRunner returns a CommandRunner backed by os/exec.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) RunBlocking(ctx context.Context, bin string, args []string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), env...)

	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

func (execRunner) Start(bin string, args []string, env []string, detach bool) (*Handle, error) {
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), env...)

	if detach {
		// Own process group so shell signals aimed at us do not
		// take the workers down with us.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	done := make(chan ExitResult, 1)
	pid := cmd.Process.Pid

	go func() {
		err := cmd.Wait()
		code := 0
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		done <- ExitResult{PID: pid, ExitCode: code, Err: err}
	}()

	return &Handle{PID: pid, Done: done}, nil
}

// tailBuffer keeps only the last outputTailBytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf.Write(p)
	if t.buf.Len() > outputTailBytes {
		tail := t.buf.Bytes()[t.buf.Len()-outputTailBytes:]
		trimmed := make([]byte, outputTailBytes)
		copy(trimmed, tail)
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
