package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"qsotrainer/commands"
	"qsotrainer/config"
	"qsotrainer/engine"
	"qsotrainer/stats"
	"qsotrainer/telnet"
	"qsotrainer/ui"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const statsLogInterval = 5 * time.Minute

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Program entrypoint; wires configuration, the engine and a front-end.
// Key aspects: Engine loop and player run under one errgroup; the front-end
// or a signal ends the session.
// Upstream: OS process start.
// Downstream: newStation, newSurface, runSession.
func main() {
	configDir := flag.String("config", "", "configuration directory (overridden by "+config.EnvConfigPath+")")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.ResolveDir(*configDir))
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	fanout, err := setupLogging(cfg.Logging, os.Stdout)
	if err != nil {
		log.Printf("Warning: file logging disabled: %v", err)
	}
	// The fanout stamps its own times.
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := loadCTY(cfg.CTY)
	st, err := newStation(ctx, cfg, db, seedFor(cfg.Simulation.Seed, time.Now()))
	if err != nil {
		log.Fatalf("Error starting engine: %v", err)
	}
	st.openStores()
	defer st.close()

	proc := commands.NewProcessor(st.loop, st.commandOptions())
	surface, console := newSurface(cfg, st.loop, proc)
	surface.WaitReady()
	fanout.SetConsoleSink(surface.SystemWriter(), true)
	if console != nil {
		cfg.Print()
	}
	st.ctrl.AddObserver(engine.QSOObserverFunc(surface.AppendQSO))

	fanout.SetDayCloser(func(day time.Time) []string {
		return dayCloseLines(day, st.loop.Snapshot().Score)
	})

	log.Printf("QSO trainer v%s starting (%s)", Version, cfg.User.Callsign)
	if srv := startCommandPort(cfg.Telnet, proc); srv != nil {
		st.ctrl.AddObserver(srv)
		defer srv.Stop()
	}
	if console != nil {
		go runCommandLoop(os.Stdin, proc, console)
	}
	if err := runSession(ctx, st, surface, fanout, cfg.UI.RefreshMS, console != nil); err != nil {
		log.Printf("Session error: %v", err)
	}

	surface.Stop()
	fanout.SetConsoleSink(os.Stdout, true)
	log.Println("Shutting down gracefully...")
	logSummary(st.ctrl.Session(), st.ctrl.Tracker())
}

// newSurface picks the front-end. console is non-nil for the headless one.
func newSurface(cfg *config.Config, loop *engine.Loop, proc *commands.Processor) (ui.Surface, *ansiConsole) {
	tty := isStdoutTTY()
	switch cfg.UI.Mode {
	case "tview":
		if tty {
			return ui.NewTrainer(loop, proc, ui.Options{
				RefreshInterval: time.Duration(cfg.UI.RefreshMS) * time.Millisecond,
			}), nil
		}
		log.Printf("UI disabled (tview requires an interactive console)")
	case "headless":
	default:
		log.Printf("UI mode %q not recognized; defaulting to headless", cfg.UI.Mode)
	}
	c := newANSIConsole(os.Stdout, cfg.UI.Color && tty)
	return c, c
}

// startCommandPort opens the remote command port when enabled. A bind
// failure leaves the session running without it.
func startCommandPort(cfg config.TelnetConfig, proc ui.CommandProcessor) *telnet.Server {
	if !cfg.Enabled {
		return nil
	}
	srv := telnet.NewServer(telnet.ServerOptions{
		Port:             cfg.Port,
		MaxConnections:   cfg.MaxConnections,
		Transport:        cfg.Transport,
		EchoMode:         cfg.EchoMode,
		KeepaliveSeconds: cfg.KeepaliveSeconds,
	}, proc)
	if err := srv.Start(); err != nil {
		log.Printf("Warning: command port disabled: %v", err)
		return nil
	}
	return srv
}

// Purpose: Run the engine until the operator quits or a signal arrives.
// Key aspects: errgroup owns the loop, the player and the stats logger.
// Upstream: main.
// Downstream: engine.Loop.Run, playback.SimPlayer.Run.
func runSession(ctx context.Context, st *station, surface ui.Surface, fanout *logFanout, refreshMS int, pushSnapshots bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.loop.Run(gctx) })
	g.Go(func() error { return st.player.Run(gctx, playerInterval) })
	g.Go(func() error {
		logStatsPeriodically(gctx, st.ctrl.Tracker(), fanout, statsLogInterval)
		return nil
	})
	if pushSnapshots {
		g.Go(func() error {
			pumpSnapshots(gctx, st.loop, surface, time.Duration(refreshMS)*time.Millisecond)
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-surface.Done():
			log.Println("Operator quit")
		case <-gctx.Done():
			if ctx.Err() != nil {
				log.Println("Received shutdown signal")
			}
		}
		cancel()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pumpSnapshots feeds the headless console; the tview UI polls on its own.
func pumpSnapshots(ctx context.Context, loop *engine.Loop, surface ui.Surface, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			surface.SetSnapshot(loop.Snapshot())
		}
	}
}

// runCommandLoop reads command lines until BYE or EOF, then quits the console.
func runCommandLoop(in io.Reader, proc ui.CommandProcessor, console *ansiConsole) {
	defer console.quit()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		resp := proc.ProcessCommand(scanner.Text())
		if resp == "BYE" {
			return
		}
		for _, line := range strings.Split(strings.TrimRight(resp, "\n"), "\n") {
			if line != "" {
				console.AppendSystem(line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Console: read error: %v", err)
	}
}

// logStatsPeriodically writes the counters to the log file only, so the
// operating screen stays quiet.
func logStatsPeriodically(ctx context.Context, tracker *stats.Tracker, fanout *logFanout, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, line := range tracker.SnapshotLines() {
				fanout.WriteFileOnlyLine("Stats: "+line, now)
			}
		}
	}
}

// dayCloseLines ends a day's session log with the running score.
func dayCloseLines(day time.Time, score stats.Score) []string {
	return []string{
		fmt.Sprintf("Session: %s closed with %d QSOs, %d points", day.Format("2006-01-02"), score.QSOs, score.Points),
	}
}

func logSummary(session *stats.Session, tracker *stats.Tracker) {
	score := session.Score()
	log.Printf("Session: %d QSOs, %d points, %.0f/h over %s", score.QSOs, score.Points,
		score.HourlyRate(time.Now()), tracker.Uptime().Round(time.Second))
	a := stats.Analyze(session.Records())
	if a.TotalQSOs > 0 {
		log.Printf("Session: call accuracy %.0f%%, exchange accuracy %.0f%%", a.CallsignAccuracy, a.ExchangeAccuracy)
	}
}
