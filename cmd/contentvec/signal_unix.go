//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are the shutdown triggers: SIGINT for interactive use,
// SIGTERM for process managers (systemd, kubernetes, plain kill).
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
