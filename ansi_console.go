package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"qsotrainer/engine"
	"qsotrainer/qso"
	"qsotrainer/stats"
	"qsotrainer/ui"
)

// ansiConsole is the headless front-end (ui.mode=headless). Logged contacts,
// state changes and log lines are printed as they happen; commands arrive on
// stdin through the command processor. Color tags are translated to ANSI
// escapes when color is on and stripped otherwise.
type ansiConsole struct {
	mu        sync.Mutex
	out       io.Writer
	color     bool
	writer    *ansiWriter
	done      chan struct{}
	quitOnce  sync.Once
	lastState qso.State
	lastNote  string
	seen      bool
}

var _ ui.Surface = (*ansiConsole)(nil)

func newANSIConsole(out io.Writer, color bool) *ansiConsole {
	c := &ansiConsole{
		out:   out,
		color: color,
		done:  make(chan struct{}),
	}
	c.writer = &ansiWriter{append: c.AppendSystem}
	return c
}

func (c *ansiConsole) WaitReady() {}

// Stop is a no-op; the console owns no goroutines.
func (c *ansiConsole) Stop() {}

func (c *ansiConsole) Done() <-chan struct{} {
	return c.done
}

// quit is called by the stdin loop on BYE or EOF.
func (c *ansiConsole) quit() {
	c.quitOnce.Do(func() { close(c.done) })
}

// SetSnapshot prints the status line when the state or the status text
// changes. Tick-only snapshots print nothing.
func (c *ansiConsole) SetSnapshot(snap engine.Snapshot) {
	if c == nil {
		return
	}
	c.mu.Lock()
	changed := !c.seen || snap.State != c.lastState || snap.Status != c.lastNote
	c.seen = true
	c.lastState = snap.State
	c.lastNote = snap.Status
	c.mu.Unlock()
	if !changed {
		return
	}
	line := fmt.Sprintf("[cyan]%s[-] %s", snap.State, snap.Status)
	if snap.Engaged != "" {
		line += "  [magenta]" + snap.Engaged + "[-]"
	} else if len(snap.Active) > 0 {
		line += "  " + strings.Join(snap.Active, " ")
	}
	c.println(line)
}

func (c *ansiConsole) AppendQSO(rec stats.QSORecord) {
	call := "[green]" + rec.EnteredCall + "[-]"
	if !rec.CallsignCorrect {
		call = fmt.Sprintf("[red]%s[-] (%s)", rec.EnteredCall, rec.ExpectedCall)
	}
	exch := "[green]" + rec.EnteredExchange + "[-]"
	if !rec.ExchangeCorrect {
		exch = fmt.Sprintf("[red]%s[-] (%s)", rec.EnteredExchange, rec.ExpectedExchange)
	}
	c.println(fmt.Sprintf("QSO %03d %s %s %d WPM %d pt", rec.Serial, call, exch, rec.StationWPM, rec.Points))
}

func (c *ansiConsole) AppendSystem(line string) {
	c.println(line)
}

func (c *ansiConsole) SystemWriter() io.Writer {
	if c == nil {
		return nil
	}
	return c.writer
}

func (c *ansiConsole) println(line string) {
	if c == nil || c.out == nil {
		return
	}
	line = applyANSIMarkup(line, c.color)
	c.mu.Lock()
	_, _ = io.WriteString(c.out, line+"\n")
	c.mu.Unlock()
}

type ansiWriter struct {
	append func(string)
	buf    []byte
	mu     sync.Mutex
}

// Write buffers until newline and bounds the partial line.
func (w *ansiWriter) Write(p []byte) (int, error) {
	if w == nil || w.append == nil {
		return len(p), nil
	}
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	var lines []string
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, strings.TrimRight(string(w.buf[:idx]), "\r"))
		w.buf = w.buf[idx+1:]
	}
	const maxWriterBufferSize = 16 * 1024
	if len(w.buf) > maxWriterBufferSize {
		// Drop overflow by forcing a flush of the partial line to avoid unbounded growth.
		if trimmed := strings.TrimRight(string(w.buf), "\r"); trimmed != "" {
			lines = append(lines, trimmed)
		}
		w.buf = w.buf[:0]
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.append(line)
	}
	return len(p), nil
}

// applyANSIMarkup translates or strips color tags.
func applyANSIMarkup(line string, enableColor bool) string {
	if line == "" {
		return line
	}
	if enableColor {
		// Heuristic: any markup brackets triggers a reset append after replacement.
		hasMarkup := strings.Contains(line, "[")
		line = ansiColorReplacer.Replace(line)
		if hasMarkup {
			line += resetANSI
		}
		return line
	}
	return ansiStripReplacer.Replace(line)
}

const resetANSI = "\x1b[0m"

var ansiColorReplacer = strings.NewReplacer(
	"[red]", "\x1b[31m",
	"[green]", "\x1b[32m",
	"[yellow]", "\x1b[33m",
	"[blue]", "\x1b[34m",
	"[magenta]", "\x1b[35m",
	"[cyan]", "\x1b[36m",
	"[white]", "\x1b[37m",
	"[gray]", "\x1b[90m",
	"[-]", resetANSI,
)

var ansiStripReplacer = strings.NewReplacer(
	"[red]", "",
	"[green]", "",
	"[yellow]", "",
	"[blue]", "",
	"[magenta]", "",
	"[cyan]", "",
	"[white]", "",
	"[gray]", "",
	"[-]", "",
)
