package platform

import (
	"os"
	"syscall"
)

// ProcessRebooter restarts the current process in place by re-executing
// argv[0] with the current argument list and environment, the host
// equivalent of the original's MXC_SYS_Reset_Periph peripheral reset.
// Reboot does not return on success.
type ProcessRebooter struct{}

// Reboot re-execs the running binary. If exec itself fails (the binary was
// removed out from under the process, say), it falls back to os.Exit so
// the caller's supervisor restarts it instead.
func (ProcessRebooter) Reboot() {
	exe, err := os.Executable()
	if err == nil {
		_ = syscall.Exec(exe, os.Args, os.Environ())
	}
	os.Exit(1)
}
