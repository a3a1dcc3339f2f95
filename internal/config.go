package internal

import (
	"net/http"
	"time"
)

const chunkSize = 4096

// Target identifies one transfer: where the bytes come from and where
// they land on disk.
type Target struct {
	URL        string
	OutputPath string
}

// Config is an immutable per-transfer snapshot. The engine never mutates
// it; the same value can back any number of attempts.
type Config struct {
	Timeout       time.Duration
	MaxRetries    int
	ThrottleKBps  int64 // total cap across all transfers, 0 disables
	Parallelism   int   // transfers splitting the cap between them
	ProxyHost     string
	ProxyPort     int
	ProxyUsername string
	ProxyPassword string
	UserAgent     string
	// CookieJar is the caller's credential context. The engine only
	// consumes it; acquiring cookies is the caller's problem.
	CookieJar http.CookieJar
}

func DefaultConfig() Config {
	return Config{
		Timeout:     2 * time.Minute,
		MaxRetries:  3,
		Parallelism: 1,
		UserAgent:   defaultUserAgent,
	}
}

// perTransferRate splits the total bandwidth cap evenly across the
// configured degree of parallelism. Zero means unthrottled.
func (c Config) perTransferRate() int64 {
	if c.ThrottleKBps <= 0 {
		return 0
	}
	degree := c.Parallelism
	if degree < 1 {
		degree = 1
	}
	return c.ThrottleKBps * 1024 / int64(degree)
}
