package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/superengineer/overlaywatch/internal/envelope"
)

const (
	// defaultBufferSize is the buffer size for report writers (8 KB).
	defaultBufferSize = 8 * 1024

	// defaultFlushInterval is the interval between deferred flushes.
	defaultFlushInterval = 100 * time.Millisecond
)

// FileSink appends envelopes as JSONL to a per-page report file under the
// output directory. The file is opened lazily on the first report and writes
// are buffered with a deferred flush timer.
type FileSink struct {
	dir    string
	pageID string

	mu         sync.Mutex
	file       *os.File
	writer     *bufio.Writer
	flushTimer *time.Timer
}

// NewFileSink creates a file sink for one page.
func NewFileSink(dir, pageID string) *FileSink {
	return &FileSink{dir: dir, pageID: pageID}
}

// Path returns the report file path for this sink.
func (f *FileSink) Path() string {
	return filepath.Join(f.dir, f.pageID+".jsonl")
}

// Send appends the envelope to the page's report file.
func (f *FileSink) Send(env *envelope.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.open(); err != nil {
		return err
	}

	if _, err := f.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// Flush eagerly when the buffer is nearly full, otherwise defer.
	if f.writer.Buffered() > f.writer.Size()*3/4 {
		f.cancelFlushTimer()
		if err := f.writer.Flush(); err != nil {
			return err
		}
		return nil
	}
	f.scheduleFlush()
	return nil
}

// open creates the report file if it is not open yet. Callers hold f.mu.
func (f *FileSink) open() error {
	if f.file != nil {
		return nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.OpenFile(f.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	f.file = file
	f.writer = bufio.NewWriterSize(file, defaultBufferSize)
	return nil
}

// scheduleFlush arms the deferred flush timer. Callers hold f.mu.
func (f *FileSink) scheduleFlush() {
	if f.flushTimer != nil {
		return // already scheduled
	}
	f.flushTimer = time.AfterFunc(defaultFlushInterval, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.writer != nil {
			_ = f.writer.Flush()
		}
		f.flushTimer = nil
	})
}

// cancelFlushTimer stops any pending flush timer. Callers hold f.mu.
func (f *FileSink) cancelFlushTimer() {
	if f.flushTimer != nil {
		f.flushTimer.Stop()
		f.flushTimer = nil
	}
}

// Close flushes and closes the report file.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}

	f.cancelFlushTimer()

	if err := f.writer.Flush(); err != nil {
		return err
	}
	if err := f.file.Sync(); err != nil {
		return err
	}
	err := f.file.Close()
	f.file = nil
	f.writer = nil
	return err
}
