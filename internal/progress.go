package internal

import (
	"sync"
	"time"
)

// ETAUnknown is returned when no speed measurement exists yet, so an ETA
// would be a division by zero. Callers must render it explicitly.
const ETAUnknown = time.Duration(-1)

// Snapshot is one progress observation, recomputed after every chunk.
type Snapshot struct {
	Received int64
	Total    int64   // -1 when the server declared no length
	SpeedBPS float64 // bytes per second since the attempt began
}

func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	pct := float64(s.Received) / float64(s.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (s Snapshot) ETA() time.Duration {
	if s.SpeedBPS <= 0 || s.Total <= 0 {
		return ETAUnknown
	}
	remaining := s.Total - s.Received
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / s.SpeedBPS * float64(time.Second))
}

// Observer receives progress and completion events. Calls happen
// synchronously on the downloading goroutine, so implementations must not
// block for long.
type Observer interface {
	Progress(target Target, snap Snapshot)
	Completed(target Target, received int64)
}

// Reporter fans snapshots out to registered observers. No buffering, no
// coalescing: every chunk produces one notification. A nil *Reporter is
// valid and drops everything.
type Reporter struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewReporter(observers ...Observer) *Reporter {
	return &Reporter{observers: observers}
}

func (r *Reporter) Attach(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Reporter) Progress(target Target, snap Snapshot) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.observers {
		o.Progress(target, snap)
	}
}

// Completed is a terminal event distinct from progress; the engine emits
// it explicitly rather than observers inferring it from a 100% snapshot.
func (r *Reporter) Completed(target Target, received int64) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.observers {
		o.Completed(target, received)
	}
}
