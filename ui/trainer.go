package ui

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"qsotrainer/engine"
	"qsotrainer/stats"
)

// Runner is the part of engine.Loop the terminal UI drives.
type Runner interface {
	Submit(a engine.Action) bool
	Snapshot() engine.Snapshot
}

// CommandProcessor answers command-bar lines.
type CommandProcessor interface {
	ProcessCommand(cmd string) string
}

// Options tunes the terminal UI.
type Options struct {
	RefreshInterval time.Duration
	TargetFPS       int
	LogLines        int
	SystemLines     int
	// Screen replaces the terminal; tests pass a simulation screen.
	Screen tcell.Screen
}

func (o *Options) normalize() {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 100 * time.Millisecond
	}
	if o.TargetFPS <= 0 {
		o.TargetFPS = 30
	}
	if o.LogLines <= 0 {
		o.LogLines = 500
	}
	if o.SystemLines <= 0 {
		o.SystemLines = 200
	}
}

// Trainer is the tview operating screen: header, status, band activity, the
// entry row, the contact log, the system log and a command bar.
type Trainer struct {
	app       *tview.Application
	scheduler *frameScheduler
	run       Runner
	cmds      CommandProcessor
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ready    chan struct{}
	done     chan struct{}
	quitOnce sync.Once

	snap atomic.Pointer[engine.Snapshot]

	header  *tview.TextView
	status  *tview.TextView
	callers *tview.TextView
	form    *entryForm
	entry   *entryPane
	qsoLog  *streamPanel
	system  *streamPanel
	command *tview.InputField

	panes         focusGroup
	commandActive bool
	// shownQSOs is the score last rendered; a drop means RESET.
	shownQSOs int
}

var _ Surface = (*Trainer)(nil)

// NewTrainer builds the UI, starts the application and the refresh loop.
func NewTrainer(run Runner, cmds CommandProcessor, opts Options) *Trainer {
	t := newTrainer(run, cmds, opts)

	app := tview.NewApplication()
	if t.opts.Screen != nil {
		app.SetScreen(t.opts.Screen)
	}
	var once sync.Once
	app.SetBeforeDrawFunc(func(tcell.Screen) bool {
		once.Do(func() { close(t.ready) })
		return false
	})
	app.SetInputCapture(t.capture)
	app.SetRoot(t.layout(), true)
	t.app = app
	t.scheduler = newFrameScheduler(app, t.opts.TargetFPS, 100*time.Millisecond, nil)
	t.scheduler.Start()
	t.panes.set(app, 0)

	t.wg.Add(1)
	go t.refreshLoop()
	go func() {
		if err := app.Run(); err != nil {
			log.Printf("UI: tview error: %v", err)
		}
		t.quit()
	}()
	return t
}

// newTrainer builds the widgets without an application; the scheduler
// then applies updates inline.
func newTrainer(run Runner, cmds CommandProcessor, opts Options) *Trainer {
	opts.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	t := &Trainer{
		run:    run,
		cmds:   cmds,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		form:   &entryForm{},
	}
	t.header = tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	t.status = newBoxedTextView("Status")
	t.callers = newBoxedTextView("Band")
	t.entry = newEntryPane(t.form)
	t.qsoLog = newStreamPanel("Log", "contacts", opts.LogLines, true)
	t.system = newStreamPanel("System", "lines", opts.SystemLines, false)
	t.command = tview.NewInputField().SetLabel(": ")
	t.command.SetDoneFunc(t.commandDone)
	t.panes = newFocusGroup(t.entry, t.qsoLog, t.system)
	t.scheduler = newFrameScheduler(nil, opts.TargetFPS, 0, nil)
	return t
}

func (t *Trainer) layout() tview.Primitive {
	footer := tview.NewTextView().SetDynamicColors(true).SetWrap(false).SetText(
		accentText("F1") + " CQ  " + accentText("F2") + " Exch  " + accentText("F3") + " TU  " +
			accentText("F5") + " His call  " + accentText("F8") + " AGN  " + accentText("F12") + " Wipe  " +
			accentText("Enter") + " Send/Log  " + accentText("Tab") + " Field  " + accentText("Up/Down") + " WPM  " +
			accentText("F4") + " Panes  " + accentText("F10") + " Command  " + accentText("Ctrl+C") + " Quit")
	top := tview.NewFlex().
		AddItem(t.status, 0, 1, false).
		AddItem(t.callers, 0, 1, false)
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.header, 1, 0, false).
		AddItem(top, 7, 0, false).
		AddItem(t.entry.root, 3, 0, true).
		AddItem(t.qsoLog.Primitive(), 0, 2, false).
		AddItem(t.system.Primitive(), 0, 1, false).
		AddItem(t.command, 1, 0, false).
		AddItem(footer, 1, 0, false)
}

func (t *Trainer) refreshLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.SetSnapshot(t.run.Snapshot())
		}
	}
}

func (t *Trainer) WaitReady() {
	if t == nil || t.ready == nil {
		return
	}
	select {
	case <-t.ready:
	case <-t.done:
	}
}

func (t *Trainer) Done() <-chan struct{} {
	return t.done
}

func (t *Trainer) quit() {
	t.quitOnce.Do(func() { close(t.done) })
}

func (t *Trainer) Stop() {
	if t == nil {
		return
	}
	t.cancel()
	t.wg.Wait()
	if t.scheduler != nil {
		t.scheduler.Stop()
	}
	if t.app != nil {
		t.app.Stop()
	}
	t.quit()
}

func (t *Trainer) SetSnapshot(snap engine.Snapshot) {
	if t == nil {
		return
	}
	t.snap.Store(&snap)
	t.scheduler.Schedule("snapshot", t.renderSnapshot)
}

func (t *Trainer) snapshot() engine.Snapshot {
	if s := t.snap.Load(); s != nil {
		return *s
	}
	return engine.Snapshot{}
}

// renderSnapshot runs on the UI goroutine.
func (t *Trainer) renderSnapshot() {
	snap := t.snapshot()
	v := buildView(snap)
	t.header.SetText(v.header)
	status := v.status + "\n" + v.progress
	if v.last != "" {
		status += "\n" + v.last
	}
	t.status.SetText(status)
	t.callers.SetText(v.callers)
	if snap.Score.QSOs < t.shownQSOs {
		t.qsoLog.SetText("")
	}
	t.shownQSOs = snap.Score.QSOs
	if t.form.observe(snap) {
		t.entry.push()
		t.focusEntry()
	}
}

func (t *Trainer) AppendQSO(rec stats.QSORecord) {
	if t == nil {
		return
	}
	t.qsoLog.AppendContact(resultLine(rec), !rec.Correct())
	t.scheduler.Schedule("log", func() {})
}

func (t *Trainer) AppendSystem(line string) {
	if t == nil {
		return
	}
	t.system.Append(stripTags(line))
	t.scheduler.Schedule("system", func() {})
}

func (t *Trainer) SystemWriter() io.Writer {
	if t == nil {
		return nil
	}
	return newPaneWriter(t.AppendSystem)
}

func (t *Trainer) focusEntry() {
	t.commandActive = false
	t.panes.set(t.app, 0)
}

func (t *Trainer) focusCommand() {
	t.commandActive = true
	if t.app != nil {
		t.app.SetFocus(t.command)
	}
}

// capture routes every key. The entry row gets the operating keys; other
// panes scroll; the command bar takes typed lines.
func (t *Trainer) capture(event *tcell.EventKey) *tcell.EventKey {
	if event == nil {
		return nil
	}
	if event.Key() == tcell.KeyCtrlC {
		t.quit()
		return nil
	}
	if t.commandActive {
		if event.Key() == tcell.KeyEsc {
			t.command.SetText("")
			t.focusEntry()
			return nil
		}
		return event
	}
	switch event.Key() {
	case tcell.KeyF10:
		t.focusCommand()
		return nil
	case tcell.KeyF4:
		t.panes.cycle(t.app, 1)
		return nil
	}
	if t.panes.current() != t.entry {
		if event.Key() == tcell.KeyEsc {
			t.focusEntry()
			return nil
		}
		t.panes.handleScroll(event)
		return nil
	}
	return t.entryKey(event)
}

func (t *Trainer) entryKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyRune {
		r := unicode.ToUpper(event.Rune())
		if r == event.Rune() {
			return event
		}
		return tcell.NewEventKey(tcell.KeyRune, r, event.Modifiers())
	}
	t.entry.pull()
	a, submit, handled := t.form.handleKey(event.Key(), t.snapshot())
	if !handled {
		return event
	}
	if submit && !t.run.Submit(a) {
		t.AppendSystem("Engine busy; " + a.Kind.String() + " dropped")
	}
	t.entry.push()
	if t.app != nil {
		t.app.SetFocus(t.entry.Primitive())
	}
	return nil
}

func (t *Trainer) commandDone(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	line := strings.TrimSpace(t.command.GetText())
	t.command.SetText("")
	if line == "" || t.cmds == nil {
		t.focusEntry()
		return
	}
	t.AppendSystem("> " + line)
	// Commands wait on the engine loop; keep the UI goroutine free.
	go func() {
		resp := t.cmds.ProcessCommand(line)
		if resp == "BYE" {
			t.quit()
			return
		}
		for _, l := range strings.Split(strings.TrimRight(resp, "\n"), "\n") {
			if l != "" {
				t.AppendSystem(l)
			}
		}
	}()
}
