package internal

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rgrab/rgrab/utils"
)

const progressBarWidth = 30

type displayEntry struct {
	snap      Snapshot
	completed bool
	received  int64
	failure   string
}

// Display renders transfer progress on a ticker. It implements Observer,
// so it plugs straight into a Reporter.
type Display struct {
	mu        sync.Mutex
	entries   map[string]*displayEntry
	doneCh    chan struct{}
	stoppedCh chan struct{}
	numLines  int
}

func NewDisplay() *Display {
	return &Display{
		entries:   make(map[string]*displayEntry),
		doneCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (d *Display) Register(outputPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[outputPath] = &displayEntry{}
}

func (d *Display) Progress(target Target, snap Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, exists := d.entries[target.OutputPath]; exists {
		entry.snap = snap
	}
}

func (d *Display) Completed(target Target, received int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, exists := d.entries[target.OutputPath]; exists {
		entry.completed = true
		entry.received = received
	}
}

func (d *Display) Fail(outputPath string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, exists := d.entries[outputPath]; exists {
		entry.completed = true
		entry.failure = fmt.Sprintf("Error: %v", err)
	}
}

func (d *Display) Start() {
	go func() {
		defer close(d.stoppedCh)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.render()
			case <-d.doneCh:
				return
			}
		}
	}()
}

// Stop waits for the ticker goroutine to exit before the final render,
// so two renders never interleave their cursor writes.
func (d *Display) Stop() {
	close(d.doneCh)
	<-d.stoppedCh
	d.render()
}

func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.numLines != 0 {
		fmt.Printf("\033[%dA\033[J", d.numLines)
	}
	keys := make([]string, 0, len(d.entries))
	for outputPath := range d.entries {
		keys = append(keys, outputPath)
	}
	sort.Strings(keys)

	for _, outputPath := range keys {
		entry := d.entries[outputPath]
		fileName := outputPath
		if len(fileName) > 25 {
			fileName = "..." + fileName[len(fileName)-22:]
		}
		switch {
		case entry.completed && entry.failure != "":
			fmt.Println(utils.FError(fmt.Sprintf("%s %s: %s", utils.StyleSymbols["fail"], fileName, entry.failure)))
		case entry.completed:
			fmt.Println(utils.FSuccess(fmt.Sprintf("%s %s: %s", utils.StyleSymbols["pass"], fileName, utils.FormatBytes(uint64(entry.received)))))
		case entry.snap.Received > 0:
			fmt.Println(utils.FPending(fmt.Sprintf("%s %s %.1f%% %s/%s %s ETA: %s",
				fileName, renderBar(entry.snap.Percent()), entry.snap.Percent(),
				utils.FormatBytes(uint64(entry.snap.Received)), formatTotal(entry.snap.Total),
				utils.FormatSpeed(entry.snap.SpeedBPS), formatETA(entry.snap.ETA()))))
		default:
			fmt.Println(utils.FDetail(fmt.Sprintf("%s %s: waiting", utils.StyleSymbols["pending"], fileName)))
		}
	}
	d.numLines = len(keys)
}

func renderBar(percent float64) string {
	filled := int(percent / 100 * progressBarWidth)
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	bar := utils.StyleSymbols["bullet"]
	bar += strings.Repeat(utils.StyleSymbols["hline"], filled)
	bar += strings.Repeat(" ", progressBarWidth-filled)
	bar += utils.StyleSymbols["bullet"]
	return bar
}

func formatTotal(total int64) string {
	if total < 0 {
		return "?"
	}
	return utils.FormatBytes(uint64(total))
}

func formatETA(eta time.Duration) string {
	if eta == ETAUnknown {
		return "calculating..."
	}
	seconds := int64(eta.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	} else if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
