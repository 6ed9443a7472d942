// Command qsosim runs the contact engine against a scripted operator on
// virtual time and prints the session report. The same seed always yields
// the same session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"qsotrainer/config"
	"qsotrainer/cty"
	"qsotrainer/engine"
	"qsotrainer/export"
	"qsotrainer/sim"
	"qsotrainer/stats"
)

func main() {
	configDir := flag.String("config", "", "config directory (overridden by "+config.EnvConfigPath+")")
	contestID := flag.String("contest", "", "contest id (default from config)")
	qsos := flag.Int("qsos", 20, "contacts to log")
	seed := flag.Uint64("seed", 0, "random seed (default from config, else 1)")
	bust := flag.Float64("bust", 0.1, "chance the operator miscopies a callsign")
	exportDir := flag.String("export", "", "write Markdown and JSON reports into this directory")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.ResolveDir(*configDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	opts := sim.DefaultOptions()
	opts.Contest = cfg.Contest.ID
	if *contestID != "" {
		opts.Contest = *contestID
	}
	opts.Engine = cfg.EngineSettings()
	opts.Pileup = cfg.PileupSettings()
	opts.ContestOptions = cfg.ContestOptions(nil, nil)
	opts.QSOs = *qsos
	opts.BustRate = *bust
	opts.Seed = cfg.Simulation.Seed
	if *seed != 0 {
		opts.Seed = *seed
	}
	if opts.Seed == 0 {
		opts.Seed = 1
	}
	if cfg.CTY.Enabled {
		db, err := cty.Load(cfg.CTY.File)
		if err != nil {
			log.Printf("CTY: %v; zones fall back to prefix rules", err)
		} else {
			opts.ContestOptions.Zones = db
		}
	}

	var logged atomic.Int64
	opts.Observers = append(opts.Observers, engine.QSOObserverFunc(func(stats.QSORecord) { logged.Add(1) }))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	done := make(chan struct{})
	var res sim.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var err error
		res, err = sim.Run(gctx, opts)
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				log.Printf("Sim: %d/%d contacts logged", logged.Load(), opts.QSOs)
			}
		}
	})
	runErr := g.Wait()

	log.Printf("Sim: %d contacts in %s virtual (%d steps, %s wall)",
		len(res.Records), res.Elapsed.Round(time.Second), res.Steps, time.Since(start).Round(time.Millisecond))
	session := export.Session{Callsign: opts.Engine.UserCallsign, Contest: opts.Contest, Records: res.Records}
	now := sim.Epoch.Add(res.Elapsed)
	fmt.Print(export.BuildMarkdown(session, now))
	for _, line := range res.Counters {
		fmt.Println(line)
	}

	if *exportDir != "" {
		if path, err := export.WriteMarkdown(*exportDir, session, now); err != nil {
			log.Printf("Export: %v", err)
		} else {
			log.Printf("Export: wrote %s", path)
		}
		if path, err := export.WriteJSON(*exportDir, session, now); err != nil {
			log.Printf("Export: %v", err)
		} else {
			log.Printf("Export: wrote %s", path)
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "qsosim: %v\n", runErr)
		os.Exit(1)
	}
}
