package providers

import (
	"testing"
	"time"
)

// fastRetry shrinks the back-off so retry paths run quickly.
func fastRetry(t *testing.T) {
	t.Helper()
	prev := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = prev })
}
