package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("REFDESK_TEST_MODE") == "" {
			_ = os.Setenv("REFDESK_TEST_MODE", "1")
		}
	})
}
