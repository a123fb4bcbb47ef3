//go:build !unix

package lifecycle

import "os"

var lifecycleSignals []os.Signal

func isWakeSignal(os.Signal) bool   { return false }
func isUnlockSignal(os.Signal) bool { return false }
