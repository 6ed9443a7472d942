// Package commands implements the line-oriented command surface used by the
// headless console and the command bar of the terminal UI. Operating
// commands become engine actions; the rest read the session, the contact
// log and the worked-before store.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"qsotrainer/buffer"
	"qsotrainer/contest"
	"qsotrainer/engine"
	"qsotrainer/export"
	"qsotrainer/stats"
	"qsotrainer/workedstore"
)

const commandTimeout = 2 * time.Second

// Runner is the part of engine.Loop the processor drives.
type Runner interface {
	Do(ctx context.Context, a engine.Action) error
	Sync(ctx context.Context, fn func(*engine.Controller)) error
}

// archiveReader is the read path of the persistent contact log.
type archiveReader interface {
	Recent(limit int) ([]stats.QSORecord, error)
}

// workedReader is the read path of the worked-before store.
type workedReader interface {
	Lookup(call string) (workedstore.Entry, bool, error)
	Top(n int) ([]workedstore.Entry, error)
}

// ContestFactory builds a contest by id for CONTEST switches.
type ContestFactory func(id string) (contest.Contest, error)

// Options wires the optional read paths.
type Options struct {
	Buffer     *buffer.RingBuffer
	Archive    archiveReader
	Worked     workedReader
	NewContest ContestFactory
	ExportDir  string
	Now        func() time.Time
}

// Processor turns command lines into actions and replies.
type Processor struct {
	run  Runner
	opts Options
}

// NewProcessor wraps run. Nil read paths disable the commands that need them.
func NewProcessor(run Runner, opts Options) *Processor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{run: run, opts: opts}
}

// ProcessCommand parses a single command and returns the response text. A
// response of "BYE" signals the caller to quit.
func (p *Processor) ProcessCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return ""
	}
	parts := strings.Fields(strings.ToUpper(cmd))
	command, args := parts[0], parts[1:]

	switch command {
	case "HELP", "H":
		return p.handleHelp()
	case "CQ", "F1":
		return p.act(engine.StartCQ())
	case "CALL", "C":
		if len(args) == 0 {
			return p.act(engine.StartCQ())
		}
		return p.act(engine.SubmitCallsign(args[0]))
	case "LOG", "L":
		return p.handleLog(args)
	case "F5", "HIS":
		if len(args) == 0 {
			return "Usage: F5 <call>\n"
		}
		return p.act(engine.SendTheirCallOnly(args[0]))
	case "F2", "EXCH":
		return p.act(engine.SendOurExchangeOnly(firstArg(args)))
	case "AGN", "F8", "?":
		return p.act(engine.RequestRepeat())
	case "TU", "F3":
		return p.act(engine.SendThankYou())
	case "ESC", "STOP":
		return p.act(engine.Stop())
	case "WPM":
		return p.handleWPM(args)
	case "STATUS", "ST":
		return p.handleStatus()
	case "STATS":
		return p.handleStats()
	case "SH", "SHOW":
		if len(args) == 0 {
			return "Usage: SHOW/QSO [count]\n"
		}
		return p.handleShow(args)
	case "WORKED", "WKD":
		return p.handleWorked(args)
	case "EXPORT":
		return p.handleExport()
	case "CONTEST":
		return p.handleContest(args)
	case "RESET":
		return p.handleReset()
	case "BYE", "QUIT", "EXIT":
		return "BYE"
	default:
		if strings.HasPrefix(command, "SH/") || strings.HasPrefix(command, "SHOW/") {
			return p.handleShow(append([]string{command[strings.Index(command, "/")+1:]}, args...))
		}
		return fmt.Sprintf("Unknown command: %s\nType HELP for available commands.\n", command)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (p *Processor) handleHelp() string {
	return `Operating:
CQ                   - Call CQ (restarts the pileup)
CALL <call>          - Send <call> with our exchange
LOG [call] <fields>  - Log the contact with the copied exchange
F5 <call>            - Send only his call
F2 [call]            - Send only our exchange
AGN                  - Ask for a repeat
TU                   - Send TU
ESC                  - Stop transmitting
WPM <n>|+n|-n        - Set or adjust keyer speed

Session:
STATUS               - Current state and callers
STATS                - Session analysis and counters
SHOW/QSO [count]     - Last N contacts (default: 10)
WORKED [call|count]  - Worked-before counts
EXPORT               - Write the session report
CONTEST [id]         - List contests or switch
RESET                - Clear the session score
BYE                  - Quit
`
}

func (p *Processor) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// act runs a and answers with the resulting status.
func (p *Processor) act(a engine.Action) string {
	ctx, cancel := p.ctx()
	defer cancel()
	if err := p.run.Do(ctx, a); err != nil {
		if errors.Is(err, engine.ErrBusy) || errors.Is(err, context.DeadlineExceeded) {
			log.Printf("Commands: %s not applied: %v", a.Kind, err)
		}
		return fmt.Sprintf("Rejected: %v\n", err)
	}
	return p.handleStatus()
}

func (p *Processor) snapshot() (engine.Snapshot, error) {
	ctx, cancel := p.ctx()
	defer cancel()
	var snap engine.Snapshot
	err := p.run.Sync(ctx, func(c *engine.Controller) { snap = c.Snapshot() })
	return snap, err
}

func (p *Processor) handleLog(args []string) string {
	if len(args) == 0 {
		return "Usage: LOG [call] <exchange fields>\n"
	}
	snap, err := p.snapshot()
	if err != nil {
		return fmt.Sprintf("Engine unavailable: %v\n", err)
	}
	call := ""
	// A leading field that looks like the engaged call is the callsign.
	if len(args) > 1 && snap.Engaged != "" && strings.EqualFold(args[0], snap.Engaged) {
		call, args = args[0], args[1:]
	}
	return p.act(engine.SubmitExchange(call, args))
}

func (p *Processor) handleWPM(args []string) string {
	if len(args) != 1 {
		return "Usage: WPM <n>|+n|-n\n"
	}
	arg := args[0]
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "Invalid speed.\n"
	}
	delta := n
	if !strings.HasPrefix(arg, "+") && !strings.HasPrefix(arg, "-") {
		snap, err := p.snapshot()
		if err != nil {
			return fmt.Sprintf("Engine unavailable: %v\n", err)
		}
		delta = n - snap.UserWPM
	}
	return p.act(engine.AdjustWPM(delta))
}

func (p *Processor) handleStatus() string {
	snap, err := p.snapshot()
	if err != nil {
		return fmt.Sprintf("Engine unavailable: %v\n", err)
	}
	return FormatStatus(snap)
}

// FormatStatus renders a snapshot as a few status lines.
func FormatStatus(snap engine.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", snap.State, snap.Status)
	if snap.Engaged != "" {
		fmt.Fprintf(&b, "Working: %s", snap.Engaged)
		if snap.CorrectionActive {
			fmt.Fprintf(&b, " (correction %d)", snap.CorrectionAttempts)
		}
		b.WriteString("\n")
	} else if len(snap.Active) > 0 {
		fmt.Fprintf(&b, "Calling: %s\n", strings.Join(snap.Active, " "))
	}
	if snap.LastSent != "" {
		fmt.Fprintf(&b, "TX: %s\n", snap.LastSent)
	}
	if snap.LastHeard != "" {
		fmt.Fprintf(&b, "RX: %s\n", snap.LastHeard)
	}
	fmt.Fprintf(&b, "%s | %d WPM | NR %03d | QSOs %s | Pts %s\n",
		snap.Contest, snap.UserWPM, snap.Serial, humanize.Comma(int64(snap.Score.QSOs)), humanize.Comma(int64(snap.Score.Points)))
	return b.String()
}

func (p *Processor) handleStats() string {
	ctx, cancel := p.ctx()
	defer cancel()
	var (
		a     stats.Analysis
		lines []string
		rate  float64
	)
	err := p.run.Sync(ctx, func(c *engine.Controller) {
		a = c.Session().Analyze()
		lines = c.Tracker().SnapshotLines()
		rate = c.Session().Score().HourlyRate(p.opts.Now())
	})
	if err != nil {
		return fmt.Sprintf("Engine unavailable: %v\n", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "QSOs %d | correct %d (%.1f%%) | perfect %d (%.1f%%) | points %d | rate %.0f/h\n",
		a.TotalQSOs, a.CorrectQSOs, a.CorrectRate, a.PerfectQSOs, a.PerfectRate, a.TotalPoints, rate)
	fmt.Fprintf(&b, "Call accuracy %.1f%% | exchange accuracy %.1f%% | AGN %d | F5 %d\n",
		a.CallsignAccuracy, a.ExchangeAccuracy, a.RepeatAnyCount, a.CallOnlyCount)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// handleShow routes SHOW subcommands; only SHOW/QSO is supported.
func (p *Processor) handleShow(args []string) string {
	sub := strings.TrimPrefix(args[0], "/")
	switch sub {
	case "QSO", "LOG":
		return p.handleShowQSO(args[1:])
	default:
		return fmt.Sprintf("Unknown SHOW subcommand: %s\n", sub)
	}
}

// handleShowQSO renders the most recent N contacts (contact log when
// enabled, otherwise the ring buffer).
func (p *Processor) handleShowQSO(args []string) string {
	count := 10
	if len(args) > 0 {
		var err error
		count, err = strconv.Atoi(args[0])
		if err != nil || count < 1 || count > 100 {
			return "Invalid count. Use 1-100.\n"
		}
	}

	var recs []stats.QSORecord
	if p.opts.Archive != nil {
		if rows, err := p.opts.Archive.Recent(count); err != nil {
			log.Printf("SHOW QSO: log query failed, falling back to ring buffer: %v", err)
		} else {
			recs = rows
		}
	}
	if len(recs) == 0 && p.opts.Buffer != nil {
		recs = p.opts.Buffer.GetRecent(count)
	}
	if len(recs) == 0 {
		return "No contacts logged.\n"
	}

	// Oldest first so the latest contact is last.
	reverseInPlace(recs)
	var b strings.Builder
	for _, rec := range recs {
		b.WriteString(FormatQSO(rec))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatQSO renders one contact on a line.
func FormatQSO(rec stats.QSORecord) string {
	mark := "OK"
	switch {
	case !rec.CallsignCorrect && !rec.ExchangeCorrect:
		mark = "BUST"
	case !rec.CallsignCorrect:
		mark = "CALL? " + rec.ExpectedCall
	case !rec.ExchangeCorrect:
		mark = "EXCH? " + rec.ExpectedExchange
	}
	return fmt.Sprintf("%03d %s %-10s %-14s %2d WPM %dpt %s",
		rec.Serial, rec.Time.UTC().Format("15:04:05"), rec.EnteredCall, rec.EnteredExchange, rec.StationWPM, rec.Points, mark)
}

func reverseInPlace(recs []stats.QSORecord) {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
}

func (p *Processor) handleWorked(args []string) string {
	if p.opts.Worked == nil {
		return "Worked-before store is disabled.\n"
	}
	count := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			entry, ok, err := p.opts.Worked.Lookup(args[0])
			if err != nil {
				return fmt.Sprintf("Lookup failed: %v\n", err)
			}
			if !ok {
				return fmt.Sprintf("%s: not worked before\n", args[0])
			}
			return fmt.Sprintf("%s: worked %s times, last %s\n", entry.Call, humanize.Comma(int64(entry.Count)), humanize.Time(entry.Last))
		}
		if n < 1 || n > 100 {
			return "Invalid count. Use 1-100.\n"
		}
		count = n
	}
	top, err := p.opts.Worked.Top(count)
	if err != nil {
		return fmt.Sprintf("Lookup failed: %v\n", err)
	}
	if len(top) == 0 {
		return "Nothing worked yet.\n"
	}
	var b strings.Builder
	for _, e := range top {
		fmt.Fprintf(&b, "%-10s %6s\n", e.Call, humanize.Comma(int64(e.Count)))
	}
	return b.String()
}

func (p *Processor) handleExport() string {
	if strings.TrimSpace(p.opts.ExportDir) == "" {
		return "Export is disabled.\n"
	}
	ctx, cancel := p.ctx()
	defer cancel()
	var s export.Session
	err := p.run.Sync(ctx, func(c *engine.Controller) {
		s = export.Session{
			Callsign: c.Settings().UserCallsign,
			Contest:  c.Contest().DisplayName(),
			Records:  c.Session().Records(),
		}
	})
	if err != nil {
		return fmt.Sprintf("Engine unavailable: %v\n", err)
	}
	if len(s.Records) == 0 {
		return "No contacts to export.\n"
	}
	now := p.opts.Now()
	md, err := export.WriteMarkdown(p.opts.ExportDir, s, now)
	if err != nil {
		return fmt.Sprintf("Export failed: %v\n", err)
	}
	js, err := export.WriteJSON(p.opts.ExportDir, s, now)
	if err != nil {
		return fmt.Sprintf("Export failed: %v\n", err)
	}
	log.Printf("Export: wrote %s and %s", md, js)
	return fmt.Sprintf("Exported %d contacts to %s\n", len(s.Records), md)
}

func (p *Processor) handleContest(args []string) string {
	if len(args) == 0 {
		var b strings.Builder
		for _, d := range contest.Registry() {
			fmt.Fprintf(&b, "%-12s %s\n", d.ID, d.DisplayName)
		}
		return b.String()
	}
	if p.opts.NewContest == nil {
		return "Contest switching is disabled.\n"
	}
	next, err := p.opts.NewContest(strings.ToLower(args[0]))
	if err != nil {
		return fmt.Sprintf("Contest: %v\n", err)
	}
	ctx, cancel := p.ctx()
	defer cancel()
	if err := p.run.Sync(ctx, func(c *engine.Controller) { c.SwitchContest(next) }); err != nil {
		return fmt.Sprintf("Engine unavailable: %v\n", err)
	}
	return fmt.Sprintf("Contest: %s\n", next.DisplayName())
}

func (p *Processor) handleReset() string {
	ctx, cancel := p.ctx()
	defer cancel()
	if err := p.run.Sync(ctx, func(c *engine.Controller) { c.ResetSession() }); err != nil {
		return fmt.Sprintf("Engine unavailable: %v\n", err)
	}
	return "Session cleared.\n"
}
