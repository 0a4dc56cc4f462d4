// Package spawn starts detached background refreshers.
package spawn

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/bnema/healthline/internal/ports"
)

// Detached re-executes a binary in its own session with stdio closed, so the
// child outlives the status line invocation that started it.
type Detached struct {
	executable string
	env        []string
}

var _ ports.Spawner = (*Detached)(nil)

// NewDetached uses the running executable when executable is empty.
func NewDetached(executable string, env ...string) (*Detached, error) {
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		executable = self
	}

	return &Detached{executable: executable, env: env}, nil
}

func (d *Detached) Spawn(_ context.Context, args ...string) (int, error) {
	// Not CommandContext: the child must survive the caller's deadline.
	cmd := exec.Command(d.executable, args...)
	cmd.Env = append(os.Environ(), d.env...)
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", d.executable, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release child %d: %w", pid, err)
	}

	return pid, nil
}
