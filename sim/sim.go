// Package sim runs the engine against a scripted operator on virtual time.
// Everything is driven from one goroutine with seeded randomness, so a run
// is reproducible from its seed.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"qsotrainer/contest"
	"qsotrainer/engine"
	"qsotrainer/pileup"
	"qsotrainer/playback"
	"qsotrainer/stats"
)

// ErrStalled is returned when the virtual time limit passes before the
// requested number of contacts is logged.
var ErrStalled = errors.New("sim: virtual time limit reached")

// Epoch is the virtual start time of every run.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Options configures a run.
type Options struct {
	Contest        string
	ContestOptions contest.Options
	Engine         engine.Settings
	Pileup         pileup.Settings

	QSOs     int
	Seed     uint64
	BustRate float64       // chance the operator miscopies a callsign
	Reaction time.Duration // operator delay between actions
	Step     time.Duration
	Limit    time.Duration // virtual time budget

	Observers []engine.QSOObserver
}

// DefaultOptions is a 20-contact CWT run.
func DefaultOptions() Options {
	return Options{
		Contest:  "cwt",
		Engine:   engine.DefaultSettings(),
		Pileup:   pileup.DefaultSettings(),
		QSOs:     20,
		Seed:     1,
		BustRate: 0.1,
		Reaction: 200 * time.Millisecond,
		Step:     10 * time.Millisecond,
		Limit:    time.Hour,
	}
}

// Result is what a run produced.
type Result struct {
	Records  []stats.QSORecord
	Analysis stats.Analysis
	Score    stats.Score
	Counters []string
	Elapsed  time.Duration
	Steps    int
}

// Run plays opts.QSOs contacts. It stops early on ctx cancellation or when
// the virtual time limit passes, returning what was logged so far with the
// error.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.QSOs <= 0 {
		return Result{}, fmt.Errorf("sim: qsos must be positive, got %d", opts.QSOs)
	}
	if opts.Step <= 0 {
		opts.Step = 10 * time.Millisecond
	}
	if opts.Limit <= 0 {
		opts.Limit = time.Hour
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	copts := opts.ContestOptions
	if copts.Rand == nil {
		copts.Rand = rng
	}
	if copts.User.Callsign == "" {
		copts.User.Callsign = opts.Engine.UserCallsign
	}
	c, err := contest.New(opts.Contest, copts)
	if err != nil {
		return Result{}, fmt.Errorf("sim: %w", err)
	}
	if opts.Pileup.UserCallsign == "" {
		opts.Pileup.UserCallsign = opts.Engine.UserCallsign
	}

	clock := engine.NewManualClock(Epoch)
	pool := pileup.New(c, opts.Pileup, rng)
	disp := engine.NewDispatcher(ctx, 1024)
	player := playback.NewSimPlayer(disp, clock.Now)
	ctrl := engine.NewController(opts.Engine, c, pool, player, clock, rng)
	for _, o := range opts.Observers {
		ctrl.AddObserver(o)
	}
	loop := engine.NewLoop(ctrl, disp)
	op := newOperator(rand.New(rand.NewPCG(opts.Seed+1, opts.Seed)), opts.BustRate, opts.Reaction)

	var res Result
	for ctrl.Session().Len() < opts.QSOs {
		if err = ctx.Err(); err != nil {
			break
		}
		if clock.Now().Sub(Epoch) >= opts.Limit {
			err = ErrStalled
			break
		}
		now := clock.Advance(opts.Step)
		player.Step(now)
		loop.RunOnce(now)
		if a, ok := op.next(now, loop.Snapshot(), player.Busy()); ok {
			loop.Submit(a)
		}
		res.Steps++
	}

	res.Records = ctrl.Session().Records()
	res.Analysis = stats.Analyze(res.Records)
	res.Score = ctrl.Session().Score()
	res.Counters = ctrl.Tracker().SnapshotLines()
	res.Elapsed = clock.Now().Sub(Epoch)
	return res, err
}
