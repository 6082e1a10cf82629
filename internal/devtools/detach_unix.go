//go:build !windows

package devtools

import (
	"os/exec"
	"syscall"
)

// detach puts the browser in its own process group so terminal signals
// aimed at tabreload do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
