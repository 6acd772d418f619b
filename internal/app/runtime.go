package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "FLOTILLA_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	v := os.Getenv(testModeEnv)
	testModeFlag.Store(v == "1" || v == "true")
}

// InTestMode reports whether the process should skip runtime side effects
// such as starting the worker loop. Set FLOTILLA_TEST_MODE=1 in CI.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after the environment changes.
func RefreshTestMode() {
	detectTestMode()
}
