package internal

import (
	"io"
	"sync"
	"time"
)

// throttledReader caps the sustained read rate of the wrapped stream by
// sleeping between reads. It slows the producer instead of buffering, so
// memory stays bounded at one chunk regardless of the cap.
type throttledReader struct {
	rc    io.ReadCloser
	rate  int64 // bytes per second
	start time.Time
	total int64
	once  sync.Once
}

// newThrottledReader wraps rc with a bytesPerSec ceiling. A rate of zero
// or less disables throttling and returns rc untouched.
func newThrottledReader(rc io.ReadCloser, bytesPerSec int64) io.ReadCloser {
	if bytesPerSec <= 0 {
		return rc
	}
	return &throttledReader{
		rc:    rc,
		rate:  bytesPerSec,
		start: time.Now(),
	}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.rc.Read(p)
	if n > 0 {
		t.total += int64(n)
		// Sleep only the minimum needed to bring the rolling rate back
		// under the cap, never longer.
		expected := time.Duration(float64(t.total) / float64(t.rate) * float64(time.Second))
		if ahead := expected - time.Since(t.start); ahead > 0 {
			time.Sleep(ahead)
		}
	}
	return n, err
}

// Close releases the underlying stream exactly once, whichever exit path
// gets here first.
func (t *throttledReader) Close() error {
	var err error
	t.once.Do(func() {
		err = t.rc.Close()
	})
	return err
}
