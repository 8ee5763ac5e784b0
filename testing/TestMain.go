// Package testing switches the process into test mode when blank-imported by
// a test binary, so handlers never dial the gateway or start background work.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// testEnv holds values applied only when the variable is unset.
var testEnv = map[string]string{
	"RETURNSDESK_TEST_MODE": "1",
	"GATEWAY_URL":           "http://127.0.0.1:0",
	"LOG_LEVEL":             "error",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range testEnv {
			if key == "RETURNSDESK_TEST_MODE" || os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets packages that define no TestMain of their own reuse this one.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
