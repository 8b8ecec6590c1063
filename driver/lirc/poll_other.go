//go:build !unix

package lirc

import (
	"os"
	"time"
)

// waitReadable always reports readiness; reads block until output
// arrives or the command exits.
func waitReadable(f *os.File, timeout time.Duration) (bool, error) {
	return true, nil
}
