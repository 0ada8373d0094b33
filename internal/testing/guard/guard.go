// Package guard switches the process into test mode when imported, so code
// under test never dials PostgreSQL or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("WORKFORCE_TEST_MODE") == "" {
			_ = os.Setenv("WORKFORCE_TEST_MODE", "1")
		}
	})
}
