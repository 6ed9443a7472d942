package ui

import (
	"bytes"
	"log"
	"sync"
	"time"
)

const paneWriterMaxBytes = 64 * 1024

// paneWriter splits written bytes into lines for a pane. It is the log
// fan-out's console sink while the terminal UI owns the screen.
type paneWriter struct {
	appendLine func(string)
	// buf holds any partial line; it is bounded to avoid unbounded growth when no newline arrives.
	buf          []byte
	mu           sync.Mutex
	droppedBytes uint64
	lastDropLog  time.Time
}

func newPaneWriter(appendLine func(string)) *paneWriter {
	return &paneWriter{appendLine: appendLine}
}

func (w *paneWriter) Write(p []byte) (int, error) {
	if w == nil || w.appendLine == nil {
		return len(p), nil
	}
	var logDrop bool
	var dropBytes, totalDropped uint64
	now := time.Now().UTC()

	w.mu.Lock()
	w.buf = append(w.buf, p...)
	if excess := len(w.buf) - paneWriterMaxBytes; excess > 0 {
		w.buf = w.buf[excess:]
		w.droppedBytes += uint64(excess)
		dropBytes = uint64(excess)
		totalDropped = w.droppedBytes
		if w.lastDropLog.IsZero() || now.Sub(w.lastDropLog) >= 30*time.Second {
			w.lastDropLog = now
			logDrop = true
		}
	}
	var lines []string
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(w.buf[:idx], "\r")))
		w.buf = w.buf[idx+1:]
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.appendLine(line)
	}
	if logDrop {
		log.Printf("UI: pane writer dropped %d bytes (total %d) due to missing newline", dropBytes, totalDropped)
	}
	return len(p), nil
}
