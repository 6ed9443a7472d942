package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"qsotrainer/engine"
	"qsotrainer/qso"
	"qsotrainer/stats"
)

const (
	accentTag   = "[#ff69b4]"
	accentReset = "[-]"
)

// view is the text of every snapshot-driven pane. It is rebuilt from an
// engine.Snapshot and handed to the UI goroutine whole.
type view struct {
	header   string
	status   string
	callers  string
	progress string
	last     string
}

var toneTags = map[qso.Tone]string{
	qso.ToneNeutral:   "[gray]",
	qso.ToneBusy:      "[yellow]",
	qso.ToneWaiting:   "[blue]",
	qso.ToneReady:     "[green]",
	qso.ToneAttention: "[orange]",
}

func buildView(s engine.Snapshot) view {
	var v view
	rate := s.Score.HourlyRate(s.At)
	v.header = fmt.Sprintf("%s  %s WPM  NR %s  QSOs %s  Pts %s  Rate %s/h",
		accentText(s.Contest), accentText(fmt.Sprint(s.UserWPM)), accentText(fmt.Sprintf("%03d", s.Serial)),
		humanize.Comma(int64(s.Score.QSOs)), humanize.Comma(int64(s.Score.Points)), humanize.Comma(int64(rate+0.5)))

	tag, ok := toneTags[s.Tone]
	if !ok {
		tag = "[white]"
	}
	v.status = tag + s.Status + "[-]"

	var b strings.Builder
	switch {
	case s.Engaged != "":
		fmt.Fprintf(&b, "Working %s", accentText(s.Engaged))
		if s.CorrectionActive {
			fmt.Fprintf(&b, "  correction %d", s.CorrectionAttempts)
		}
	case len(s.Active) > 0:
		b.WriteString(strings.Join(s.Active, "  "))
	default:
		b.WriteString("[gray]no callers[-]")
	}
	fmt.Fprintf(&b, "\nPool: %d waiting, %d calling, %d worked, %d gave up",
		s.Pool.Waiting, s.Pool.Calling, s.Pool.Worked, s.Pool.GaveUp)
	if s.LastSent != "" {
		fmt.Fprintf(&b, "\nTX: %s", s.LastSent)
	}
	if s.LastHeard != "" {
		fmt.Fprintf(&b, "\nRX: %s", s.LastHeard)
	}
	v.callers = b.String()

	v.progress = progressLine(s.Progress)
	if s.LastResult != nil {
		v.last = "Last: " + resultLine(*s.LastResult)
	}
	return v
}

func progressLine(p qso.Progress) string {
	mark := func(label string, done bool) string {
		if done {
			return "[green]" + label + "[-]"
		}
		return "[gray]" + label + "[-]"
	}
	return strings.Join([]string{
		mark("his call", p.SentTheirCall),
		mark("my exch", p.SentOurExchange),
		mark("rcvd call", p.ReceivedTheirCall),
		mark("rcvd exch", p.ReceivedTheirExchange),
	}, "  ")
}

// resultLine renders a logged contact with busted parts highlighted.
func resultLine(rec stats.QSORecord) string {
	call := "[green]" + rec.EnteredCall + "[-]"
	if !rec.CallsignCorrect {
		call = fmt.Sprintf("[red]%s[-] (%s)", rec.EnteredCall, rec.ExpectedCall)
	}
	exch := "[green]" + rec.EnteredExchange + "[-]"
	if !rec.ExchangeCorrect {
		exch = fmt.Sprintf("[red]%s[-] (%s)", rec.EnteredExchange, rec.ExpectedExchange)
	}
	return fmt.Sprintf("%03d %s %s %d WPM %d pt", rec.Serial, call, exch, rec.StationWPM, rec.Points)
}

func accentText(text string) string {
	if text == "" {
		return ""
	}
	return accentTag + text + accentReset
}

func stripTags(s string) string {
	if s == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		"[red]", "",
		"[green]", "",
		"[yellow]", "",
		"[blue]", "",
		"[gray]", "",
		"[orange]", "",
		"[white]", "",
		accentTag, "",
		"[-]", "",
	)
	return replacer.Replace(s)
}
