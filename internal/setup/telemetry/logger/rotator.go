package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Rotator wraps a log file writer and caps it at a fixed number of lines.
// Once twice the cap has been written, the file is rewritten in place with
// only the most recent lines so long-running processes never grow a log
// without bound.
type Rotator struct {
	mu       sync.Mutex
	writer   io.Writer
	filePath string

	// Circular line buffer holding the most recent maxLines lines.
	lines    []string
	maxLines int
	head     int
	size     int
	written  int
}

// NewRotator creates a rotator over the given writer and file path.
func NewRotator(writer io.Writer, maxLines int, filePath string) *Rotator {
	return &Rotator{
		writer:   writer,
		filePath: filePath,
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Write implements io.Writer. Output goes to the underlying writer first,
// then each line is recorded in the buffer and a rewrite is triggered when
// the file has grown to twice the line cap.
func (r *Rotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err = r.writer.Write(p)
	if err != nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		r.push(line)

		if r.written == r.maxLines*2 {
			if err := r.rewrite(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}

			r.written = r.size
		}
	}

	return n, nil
}

// push appends a line to the circular buffer.
func (r *Rotator) push(line string) {
	r.lines[r.head] = line
	r.head = (r.head + 1) % r.maxLines

	if r.size < r.maxLines {
		r.size++
	}

	r.written++
}

// snapshot returns the buffered lines in chronological order.
func (r *Rotator) snapshot() []string {
	if r.size == 0 {
		return nil
	}

	out := make([]string, r.size)
	start := (r.head - r.size + r.maxLines) % r.maxLines

	for i := range r.size {
		out[i] = r.lines[(start+i)%r.maxLines]
	}

	return out
}

// rewrite replaces the log file with only the buffered lines. The swap goes
// through a temp file in the same directory so a crash mid-rotation never
// loses the live file.
func (r *Rotator) rewrite() error {
	lines := r.snapshot()
	if len(lines) == 0 {
		return nil
	}

	temp, err := os.CreateTemp(filepath.Dir(r.filePath), "temp-log-")
	if err != nil {
		return err
	}

	tempPath := temp.Name()

	if _, err := temp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	temp.Close()

	if closer, ok := r.writer.(io.Closer); ok {
		closer.Close()
	}

	// Windows requires the destination to be gone before rename.
	os.Remove(r.filePath)

	if err := os.Rename(tempPath, r.filePath); err != nil {
		return err
	}

	newFile, err := os.OpenFile(r.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	r.writer = newFile

	return nil
}
