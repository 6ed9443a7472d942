package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	uiBorderColor = tcell.ColorGray
	uiFocusColor  = tcell.ColorHotPink
	uiTitleColor  = tcell.ColorHotPink
)

// focusable abstracts a focusable primitive with optional scroll handling.
type focusable interface {
	Primitive() tview.Primitive
	SetFocused(focused bool)
	HandleScroll(event *tcell.EventKey) bool
}

func applyFocusBoxStyle(box *tview.Box, title string, focused bool) {
	if box == nil {
		return
	}
	box.SetBorderColor(uiBorderColor)
	box.SetTitleColor(uiTitleColor)
	if focused {
		box.SetBorderColor(uiFocusColor)
		title = "> " + title
	}
	box.SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tv.SetBorder(true)
	applyFocusBoxStyle(tv.Box, title, false)
	return tv
}

// entryPane is the callsign/exchange entry row. Its primitive is whichever
// input the form has active.
type entryPane struct {
	root *tview.Flex
	call *tview.InputField
	exch *tview.InputField
	form *entryForm
}

func newEntryPane(form *entryForm) *entryPane {
	p := &entryPane{
		call: tview.NewInputField().SetLabel("Call ").SetFieldWidth(14),
		exch: tview.NewInputField().SetLabel("Exch ").SetFieldWidth(24),
		form: form,
	}
	p.root = tview.NewFlex().
		AddItem(p.call, 21, 0, true).
		AddItem(tview.NewBox(), 2, 0, false).
		AddItem(p.exch, 0, 1, false)
	p.root.SetBorder(true)
	applyFocusBoxStyle(p.root.Box, "Entry", true)
	return p
}

// pull copies what the operator typed into the form.
func (p *entryPane) pull() {
	p.form.call = p.call.GetText()
	p.form.exch = p.exch.GetText()
}

// push mirrors the form back into the inputs.
func (p *entryPane) push() {
	if p.call.GetText() != p.form.call {
		p.call.SetText(p.form.call)
	}
	if p.exch.GetText() != p.form.exch {
		p.exch.SetText(p.form.exch)
	}
}

func (p *entryPane) Primitive() tview.Primitive {
	if p == nil {
		return nil
	}
	if p.form.field == fieldExchange {
		return p.exch
	}
	return p.call
}

func (p *entryPane) SetFocused(focused bool) {
	if p == nil {
		return
	}
	applyFocusBoxStyle(p.root.Box, "Entry", focused)
}

func (p *entryPane) HandleScroll(*tcell.EventKey) bool { return false }

// focusGroup manages focus cycling and scroll handling for a set of panes.
type focusGroup struct {
	items []focusable
	index int
}

func newFocusGroup(items ...focusable) focusGroup {
	filtered := make([]focusable, 0, len(items))
	for _, item := range items {
		if item == nil || item.Primitive() == nil {
			continue
		}
		filtered = append(filtered, item)
	}
	return focusGroup{items: filtered}
}

func (g *focusGroup) set(app *tview.Application, idx int) {
	if g == nil || len(g.items) == 0 {
		return
	}
	if idx < 0 || idx >= len(g.items) {
		idx = 0
	}
	g.index = idx
	for i, item := range g.items {
		item.SetFocused(i == idx)
	}
	if app != nil {
		app.SetFocus(g.items[idx].Primitive())
	}
}

func (g *focusGroup) cycle(app *tview.Application, delta int) {
	if g == nil || len(g.items) == 0 {
		return
	}
	next := g.index + delta
	if next < 0 {
		next = len(g.items) - 1
	} else if next >= len(g.items) {
		next = 0
	}
	g.set(app, next)
}

func (g *focusGroup) current() focusable {
	if g == nil || len(g.items) == 0 {
		return nil
	}
	return g.items[g.index]
}

func (g *focusGroup) handleScroll(event *tcell.EventKey) bool {
	if item := g.current(); item != nil {
		return item.HandleScroll(event)
	}
	return false
}

// streamPanel is a focusable, bounded line panel.
type streamPanel struct {
	view *logView
}

func newStreamPanel(name, noun string, max int, colors bool) *streamPanel {
	return &streamPanel{view: newLogView(name, noun, max, colors)}
}

func (p *streamPanel) Primitive() tview.Primitive {
	if p == nil {
		return nil
	}
	return p.view
}

func (p *streamPanel) SetFocused(focused bool) {
	if p == nil || p.view == nil {
		return
	}
	p.view.SetFocused(focused)
}

func (p *streamPanel) HandleScroll(event *tcell.EventKey) bool {
	if p == nil || p.view == nil {
		return false
	}
	return p.view.HandleScroll(event)
}

func (p *streamPanel) Append(line string) {
	if p == nil || p.view == nil {
		return
	}
	p.view.Append(line)
}

func (p *streamPanel) AppendContact(line string, busted bool) {
	if p == nil || p.view == nil {
		return
	}
	p.view.AppendContact(line, busted)
}

func (p *streamPanel) SetText(text string) {
	if p == nil || p.view == nil {
		return
	}
	if text == "" {
		p.view.Reset(nil)
		return
	}
	p.view.Reset(strings.Split(text, "\n"))
}

func (p *streamPanel) SnapshotText() string {
	if p == nil || p.view == nil {
		return ""
	}
	return p.view.SnapshotText()
}
