package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type rowMark uint8

const (
	markNone rowMark = iota
	markClean
	markBusted
)

type logRow struct {
	text string
	mark rowMark
}

// logView is a bounded, scrollable pane for the contact log or the system
// log. Append and Reset may run on any goroutine (the engine loop reports
// logged contacts); Draw and HandleScroll run on the UI goroutine.
//
// Logged contacts carry a gutter mark, '!' for a busted call or exchange,
// and the title keeps a running tally of contacts and busts.
type logView struct {
	*tview.Box

	mu      sync.Mutex
	rows    []logRow
	max     int
	dropped int
	noun    string

	contacts int
	busted   int

	top    int
	follow bool

	colors  bool
	name    string
	focused bool
}

func newLogView(name, noun string, max int, colors bool) *logView {
	if max <= 0 {
		max = 1
	}
	v := &logView{
		Box:    tview.NewBox().SetBorder(true),
		max:    max,
		noun:   noun,
		follow: true,
		colors: colors,
		name:   name,
	}
	applyFocusBoxStyle(v.Box, name, false)
	return v
}

func (v *logView) SetFocused(focused bool) {
	v.focused = focused
}

func (v *logView) Append(line string) {
	v.push(logRow{text: line})
}

// AppendContact adds a logged contact and counts it in the title.
func (v *logView) AppendContact(line string, busted bool) {
	row := logRow{text: line, mark: markClean}
	v.mu.Lock()
	v.contacts++
	if busted {
		v.busted++
		row.mark = markBusted
	}
	v.mu.Unlock()
	v.push(row)
}

func (v *logView) push(row logRow) {
	v.mu.Lock()
	v.rows = append(v.rows, row)
	if over := len(v.rows) - v.max; over > 0 {
		clear(v.rows[:over])
		v.rows = v.rows[over:]
		v.dropped += over
		if v.top > 0 {
			v.top = max(v.top-over, 0)
		}
	}
	v.mu.Unlock()
}

// Reset replaces the content with plain lines and clears the tally.
func (v *logView) Reset(lines []string) {
	if len(lines) > v.max {
		lines = lines[len(lines)-v.max:]
	}
	rows := make([]logRow, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, logRow{text: l})
	}
	v.mu.Lock()
	v.rows = rows
	v.dropped = 0
	v.contacts = 0
	v.busted = 0
	v.top = 0
	v.follow = true
	v.mu.Unlock()
}

func (v *logView) Title() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.titleLocked()
}

func (v *logView) titleLocked() string {
	switch {
	case v.contacts == 0:
		return v.name
	case v.busted == 0:
		return fmt.Sprintf("%s: %d QSOs", v.name, v.contacts)
	}
	return fmt.Sprintf("%s: %d QSOs, %d busted", v.name, v.contacts, v.busted)
}

// lines returns the rendered rows: an "older" notice once anything has been
// evicted, then what is kept.
func (v *logView) linesLocked() []logRow {
	if v.dropped == 0 {
		return v.rows
	}
	out := make([]logRow, 0, len(v.rows)+1)
	out = append(out, logRow{text: fmt.Sprintf("... %d older %s", v.dropped, v.noun)})
	return append(out, v.rows...)
}

func (v *logView) SnapshotText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	rows := v.linesLocked()
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.text
	}
	return strings.Join(texts, "\n")
}

func (v *logView) Draw(screen tcell.Screen) {
	v.mu.Lock()
	title := v.titleLocked()
	v.mu.Unlock()
	applyFocusBoxStyle(v.Box, title, v.focused)
	v.Box.DrawForSubclass(screen, v)

	x, y, width, height := v.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}
	v.mu.Lock()
	all := v.linesLocked()
	if v.follow || !v.focused {
		v.top = max(len(all)-height, 0)
	}
	end := min(v.top+height, len(all))
	visible := append([]logRow(nil), all[v.top:end]...)
	v.mu.Unlock()

	for i, row := range visible {
		gutter := " "
		if row.mark == markBusted {
			gutter = "[red]![-]"
		}
		text := row.text
		if !v.colors {
			text = tview.Escape(text)
		}
		tview.Print(screen, gutter+text, x, y+i, width, tview.AlignLeft, tcell.ColorWhite)
	}
}

// HandleScroll moves through history. Reaching the bottom resumes following
// new lines.
func (v *logView) HandleScroll(event *tcell.EventKey) bool {
	if event == nil {
		return false
	}
	_, _, _, height := v.GetInnerRect()
	height = max(height, 1)
	page := max(height-1, 1)

	v.mu.Lock()
	defer v.mu.Unlock()
	bottom := max(len(v.linesLocked())-height, 0)
	if v.follow {
		v.top = bottom
	}
	next := v.top
	switch event.Key() {
	case tcell.KeyUp:
		next--
	case tcell.KeyDown:
		next++
	case tcell.KeyPgUp:
		next -= page
	case tcell.KeyPgDn:
		next += page
	case tcell.KeyHome:
		next = 0
	case tcell.KeyEnd:
		next = bottom
	default:
		return false
	}
	v.top = min(max(next, 0), bottom)
	v.follow = v.top == bottom
	return true
}
