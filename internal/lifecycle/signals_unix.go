//go:build unix

package lifecycle

import (
	"os"
	"syscall"
)

var lifecycleSignals = []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2}

func isWakeSignal(sig os.Signal) bool   { return sig == syscall.SIGUSR1 }
func isUnlockSignal(sig os.Signal) bool { return sig == syscall.SIGUSR2 }
