//go:build windows

package main

import "os"

// terminationSignals are the shutdown triggers. Windows has no SIGTERM, so
// only the interrupt is watched.
var terminationSignals = []os.Signal{os.Interrupt}
