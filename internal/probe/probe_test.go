package probe

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlive_Self(t *testing.T) {
	p := New()
	assert.True(t, p.Alive(os.Getpid()))
}

func TestAlive_InvalidPID(t *testing.T) {
	p := New()
	assert.False(t, p.Alive(0))
	assert.False(t, p.Alive(-5))
}

func TestAlive_ExitedChild(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	// Reaped child: the PID no longer exists (barring immediate reuse).
	p := New()
	assert.False(t, p.Alive(pid))
}

func TestCommandLine_Self(t *testing.T) {
	p := New()
	line, ok := p.CommandLine(os.Getpid())
	if !ok {
		t.Skip("command-line introspection unavailable on this platform")
	}
	assert.NotEmpty(t, line)
}

func TestCommandLine_InvalidPID(t *testing.T) {
	p := New()
	_, ok := p.CommandLine(0)
	assert.False(t, ok)
}

func TestTerminate_InvalidPID(t *testing.T) {
	p := New()
	assert.Error(t, p.Terminate(0))
}
