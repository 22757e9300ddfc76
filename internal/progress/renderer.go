package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Renderer redraws a set of progress bars on the terminal until stopped.
type Renderer struct {
	bars     []*Bar
	output   io.Writer
	stopChan chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewRenderer creates a Renderer for the given bars, writing to stdout.
func NewRenderer(bars []*Bar) *Renderer {
	return &Renderer{
		bars:     bars,
		output:   os.Stdout,
		stopChan: make(chan struct{}),
	}
}

// Render runs the drawing loop, clearing and redrawing every bar a few
// times per second. Returns when Stop is called.
func (r *Renderer) Render() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// Reserve a line per bar so the first clear has something to erase.
	r.mu.Lock()
	for range r.bars {
		_, _ = fmt.Fprintln(r.output)
	}
	r.mu.Unlock()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.draw()
		}
	}
}

// Stop ends the rendering loop and clears the bars from the screen.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)

		r.mu.Lock()
		defer r.mu.Unlock()

		for range r.bars {
			_, _ = fmt.Fprint(r.output, "\033[1A\033[K")
		}
	})
}

func (r *Renderer) draw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Move the cursor up and clear each previously drawn line.
	for range r.bars {
		_, _ = fmt.Fprint(r.output, "\033[1A\033[K")
	}

	for _, bar := range r.bars {
		_, _ = fmt.Fprintln(r.output, bar.String())
	}
}
