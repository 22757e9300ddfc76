// Package progress renders terminal progress bars for worker processes.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Bar is a visual progress indicator with percentage, step messages, and an
// estimated completion time. Safe for concurrent updates.
type Bar struct {
	total            int64
	current          int64
	width            int
	mu               sync.Mutex
	message          string
	stepMessage      string
	stepStart        time.Time
	overallStart     time.Time
	overallDurations []time.Duration
}

// NewBar creates a progress bar tracking progress against total, with a
// visual width in characters and a message describing the operation.
func NewBar(total int64, width int, message string) *Bar {
	return &Bar{
		total:        total,
		width:        width,
		message:      message,
		stepStart:    time.Now(),
		overallStart: time.Now(),
	}
}

// SetTotal updates the value that represents 100% progress.
func (b *Bar) SetTotal(total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total = total
}

// SetMessage updates the overall operation description.
func (b *Bar) SetMessage(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.message = message
}

// SetStepMessage updates the current step description, moves progress to the
// given value, and resets the step timer.
func (b *Bar) SetStepMessage(message string, current int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stepMessage = message
	b.stepStart = time.Now()

	b.current = current
	if b.current > b.total {
		b.current = b.total
	}
}

// String renders the bar with percentage, current step and duration, overall
// duration and ETA.
func (b *Bar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	percent := 0.0
	if b.total > 0 {
		percent = float64(b.current) / float64(b.total)
	}

	filled := int(percent * float64(b.width))
	bar := strings.Repeat("=", filled) + strings.Repeat("-", b.width-filled)

	stepDuration := time.Since(b.stepStart).Round(time.Second)
	overallDuration := time.Since(b.overallStart).Round(time.Second)

	return fmt.Sprintf("%s [%s] %.1f%% | %s (%s) | Overall: %s (ETA: %s)",
		b.message, bar, percent*100, b.stepMessage, stepDuration,
		overallDuration, b.calculateETA())
}

// calculateETA estimates completion time from previous iteration durations.
// Returns "0s" until at least one iteration has finished.
func (b *Bar) calculateETA() string {
	if len(b.overallDurations) == 0 {
		return "0s"
	}

	var totalDuration time.Duration
	for _, duration := range b.overallDurations {
		totalDuration += duration
	}

	eta := totalDuration / time.Duration(len(b.overallDurations))

	return eta.Round(time.Second).String()
}

// Reset prepares the bar for a new iteration, storing the previous
// iteration's duration in a rolling window used for the ETA.
func (b *Bar) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.overallDurations) >= 10 {
		b.overallDurations = b.overallDurations[1:]
	}

	b.overallDurations = append(b.overallDurations, time.Since(b.overallStart))

	b.current = 0
	b.stepMessage = ""
	b.stepStart = time.Now()
	b.overallStart = time.Now()
}
