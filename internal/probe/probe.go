// Package probe implements the OS-level process liveness checks used by the
// process registry.
package probe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// OSProbe implements domain.ProcessProbe against the running kernel.
//
// The command-line signature read works only where /proc is mounted. On other
// platforms CommandLine reports unavailable and callers fall back to treating
// a live PID as the original process. That optimistic fallback is a known
// limitation of non-introspectable hosts, not a policy to strengthen here.
type OSProbe struct{}

func New() *OSProbe {
	return &OSProbe{}
}

// Alive reports whether a process with this PID exists, using the null
// signal. EPERM still means the PID exists, just under another user.
func (p *OSProbe) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// CommandLine returns the process's command line with argument separators
// rewritten as spaces.
func (p *OSProbe) CommandLine(pid int) (string, bool) {
	if pid <= 0 {
		return "", false
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil || len(data) == 0 {
		return "", false
	}
	line := string(bytes.ReplaceAll(data, []byte{0}, []byte{' '}))
	return strings.TrimSpace(line), true
}

// Terminate delivers SIGTERM; the worker shuts itself down gracefully.
func (p *OSProbe) Terminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return nil
}
