package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"qsotrainer/config"
	"qsotrainer/internal/ratelimit"
)

const (
	logTimestampLayout = "2006/01/02 15:04:05"
	sessionLogPrefix   = "qsot-"
	sessionLogDay      = "2006-01-02"
	maxPartialLine     = 16 * 1024
)

type lineSink interface {
	WriteLine(line string, now time.Time)
}

// consoleSink is stdout, the headless console or the UI system pane.
type consoleSink struct {
	w     io.Writer
	stamp bool
}

func (s *consoleSink) WriteLine(line string, now time.Time) {
	if s.stamp {
		line = formatLogTimestamp(now) + " " + line
	}
	_, _ = io.WriteString(s.w, line+"\n")
}

// dayCloser returns the lines that end one practice day's file. It runs with
// the file locked and must not log.
type dayCloser func(day time.Time) []string

// sessionLog keeps one file per UTC practice day, qsot-YYYY-MM-DD.log. When
// the day turns, the closer's summary is appended to the old file before the
// new one opens, and files beyond keepDays are removed.
type sessionLog struct {
	mu       sync.Mutex
	dir      string
	keepDays int
	day      string
	file     *os.File
	closer   dayCloser
	errs     *ratelimit.Counter
}

func openSessionLog(dir string, keepDays int) (*sessionLog, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("logging: directory is empty")
	}
	if keepDays <= 0 {
		keepDays = 7
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create %s: %w", dir, err)
	}
	return &sessionLog{dir: dir, keepDays: keepDays, errs: ratelimit.NewCounter(time.Minute)}, nil
}

func (s *sessionLog) setCloser(fn dayCloser) {
	s.mu.Lock()
	s.closer = fn
	s.mu.Unlock()
}

func (s *sessionLog) WriteLine(line string, now time.Time) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if day := now.Format(sessionLogDay); s.file == nil || day != s.day {
		s.turnDayLocked(day, now)
	}
	if s.file == nil {
		return
	}
	s.appendLocked(line, now)
}

func (s *sessionLog) appendLocked(line string, now time.Time) {
	if _, err := s.file.WriteString(formatLogTimestamp(now) + " " + line + "\n"); err != nil {
		s.fail(fmt.Errorf("write %s: %w", s.file.Name(), err))
	}
}

func (s *sessionLog) turnDayLocked(day string, now time.Time) {
	if s.file != nil {
		if s.closer != nil {
			prev, _ := time.ParseInLocation(sessionLogDay, s.day, time.UTC)
			for _, line := range s.closer(prev) {
				s.appendLocked(line, now)
			}
		}
		_ = s.file.Close()
		s.file = nil
	}
	path := filepath.Join(s.dir, sessionLogName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.fail(fmt.Errorf("open %s: %w", path, err))
		return
	}
	s.file = f
	s.day = day
	if err := pruneSessionLogs(s.dir, now, s.keepDays); err != nil {
		s.fail(err)
	}
}

// fail reports file trouble on stderr; the log itself may be what is broken.
func (s *sessionLog) fail(err error) {
	if total, ok := s.errs.Inc(); ok {
		fmt.Fprintf(os.Stderr, "Logging: %v (%d errors)\n", err, total)
	}
}

func (s *sessionLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.day = ""
	return err
}

// logFanout is the stdlib log output: every complete line goes to the
// console sink and to the session log.
type logFanout struct {
	mu      sync.Mutex
	partial []byte
	console lineSink
	file    lineSink
}

func newLogFanout(console, file lineSink) *logFanout {
	return &logFanout{console: console, file: file}
}

// setupLogging returns a fanout that writes to console, plus the session log
// when cfg enables it. The fanout is usable even when the error is non-nil.
func setupLogging(cfg config.LoggingConfig, console io.Writer) (*logFanout, error) {
	fanout := newLogFanout(&consoleSink{w: console, stamp: true}, nil)
	if !cfg.Enabled {
		return fanout, nil
	}
	sl, err := openSessionLog(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return fanout, err
	}
	fanout.file = sl
	return fanout, nil
}

// SetConsoleSink moves console output, e.g. into the UI system pane. A nil
// writer silences the console.
func (f *logFanout) SetConsoleSink(w io.Writer, stamp bool) {
	var sink lineSink
	if w != nil {
		sink = &consoleSink{w: w, stamp: stamp}
	}
	f.mu.Lock()
	f.console = sink
	f.mu.Unlock()
}

// SetDayCloser installs the end-of-day summary. No-op without a session log.
func (f *logFanout) SetDayCloser(fn dayCloser) {
	f.mu.Lock()
	sl, _ := f.file.(*sessionLog)
	f.mu.Unlock()
	if sl != nil {
		sl.setCloser(fn)
	}
}

func (f *logFanout) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.partial = append(f.partial, p...)
	var lines []string
	for {
		i := bytes.IndexByte(f.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(f.partial[:i], "\r")))
		f.partial = f.partial[i+1:]
	}
	if len(f.partial) > maxPartialLine {
		lines = append(lines, string(f.partial))
		f.partial = nil
	}
	console, file := f.console, f.file
	f.mu.Unlock()

	now := time.Now()
	for _, line := range lines {
		if console != nil {
			console.WriteLine(line, now)
		}
		if file != nil {
			file.WriteLine(line, now)
		}
	}
	return len(p), nil
}

// WriteFileOnlyLine keeps periodic counters out of the operator's view.
func (f *logFanout) WriteFileOnlyLine(line string, now time.Time) {
	f.mu.Lock()
	file := f.file
	f.mu.Unlock()
	if file != nil {
		file.WriteLine(line, now)
	}
}

func (f *logFanout) Close() error {
	f.mu.Lock()
	sl, _ := f.file.(*sessionLog)
	f.mu.Unlock()
	if sl == nil {
		return nil
	}
	return sl.Close()
}

func formatLogTimestamp(now time.Time) string {
	return now.UTC().Format(logTimestampLayout)
}

func sessionLogName(now time.Time) string {
	return sessionLogPrefix + now.UTC().Format(sessionLogDay) + ".log"
}

// sessionLogDate parses a session log file name; other files are not ours.
func sessionLogDate(name string) (time.Time, bool) {
	base, ok := strings.CutPrefix(name, sessionLogPrefix)
	if !ok {
		return time.Time{}, false
	}
	base, ok = strings.CutSuffix(base, ".log")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(sessionLogDay, base, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// pruneSessionLogs keeps today's file and the keepDays-1 days before it.
func pruneSessionLogs(dir string, now time.Time, keepDays int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("prune %s: %w", dir, err)
	}
	today, _ := time.ParseInLocation(sessionLogDay, now.UTC().Format(sessionLogDay), time.UTC)
	cutoff := today.AddDate(0, 0, -(keepDays - 1))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if day, ok := sessionLogDate(e.Name()); ok && day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
