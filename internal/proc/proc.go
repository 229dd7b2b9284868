// Package proc starts external helper programs (speak scripts, players,
// recorders) so that cancelling their context ends the whole process tree.
package proc

import (
	"context"
	"os/exec"
	"time"
)

// WaitDelay bounds how long Wait keeps collecting output after the
// context is done. Grandchildren that inherited stdout or stderr would
// otherwise hold Wait open until they exit.
const WaitDelay = 500 * time.Millisecond

// Command is exec.CommandContext that kills the process group on cancel.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = WaitDelay
	killGroup(cmd)
	return cmd
}
