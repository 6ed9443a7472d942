package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"qsotrainer/buffer"
	"qsotrainer/commands"
	"qsotrainer/config"
	"qsotrainer/contest"
	"qsotrainer/cty"
	"qsotrainer/engine"
	"qsotrainer/pileup"
	"qsotrainer/playback"
	"qsotrainer/qsolog"
	"qsotrainer/workedstore"
)

const (
	recentQSOCapacity = 1000
	dispatcherQueue   = 1024
	playerInterval    = 5 * time.Millisecond
)

// station holds everything one operating session needs: the engine loop, the
// simulated player and the stores that observe logged contacts.
type station struct {
	cfg    *config.Config
	seed   uint64
	zones  contest.ZoneLookup
	cty    *cty.DB
	ctrl   *engine.Controller
	loop   *engine.Loop
	player *playback.SimPlayer
	recent *buffer.RingBuffer
	qsoLog *qsolog.Log
	worked *workedstore.Store
}

// seedFor returns the configured seed, or a clock-derived one when it is 0.
func seedFor(configured uint64, now time.Time) uint64 {
	if configured != 0 {
		return configured
	}
	seed := uint64(now.UnixNano())
	if seed == 0 {
		seed = 1
	}
	return seed
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// loadCTY reads the country file when enabled. Failures degrade to no zone
// lookup and no same-country filter.
func loadCTY(cfg config.CTYConfig) *cty.DB {
	if !cfg.Enabled || strings.TrimSpace(cfg.File) == "" {
		return nil
	}
	db, err := cty.Load(cfg.File)
	if err != nil {
		log.Printf("Warning: failed to load CTY database: %v", err)
		return nil
	}
	log.Printf("Loaded CTY database from %s (%s prefixes)", cfg.File, humanize.Comma(int64(db.Len())))
	return db
}

// contestFactory builds contests for the CONTEST command. Each contest gets
// its own generator so switching does not disturb the engine's sequence.
func contestFactory(cfg *config.Config, seed uint64, zones contest.ZoneLookup) func(id string) (contest.Contest, error) {
	var n atomic.Uint64
	return func(id string) (contest.Contest, error) {
		return contest.New(id, cfg.ContestOptions(newRand(seed+n.Add(1)), zones))
	}
}

// newStation wires the engine for cfg. A nil db leaves zones unresolved.
// ctx bounds the dispatcher's event queue.
func newStation(ctx context.Context, cfg *config.Config, db *cty.DB, seed uint64) (*station, error) {
	s := &station{cfg: cfg, seed: seed, cty: db}
	if db != nil {
		s.zones = db
	}
	rng := newRand(seed)
	c, err := contest.New(cfg.Contest.ID, cfg.ContestOptions(rng, s.zones))
	if err != nil {
		return nil, fmt.Errorf("station: %w", err)
	}
	pool := pileup.New(c, cfg.PileupSettings(), rng)
	if db != nil {
		pool.SetCountryMatcher(db)
	}
	disp := engine.NewDispatcher(ctx, dispatcherQueue)
	s.player = playback.NewSimPlayer(disp, time.Now)
	s.ctrl = engine.NewController(cfg.EngineSettings(), c, pool, s.player, engine.SystemClock, rng)
	s.loop = engine.NewLoop(s.ctrl, disp)
	s.recent = buffer.NewRingBuffer(recentQSOCapacity)
	s.ctrl.AddObserver(s.recent)
	log.Printf("Contest: %s as %s", c.DisplayName(), cfg.User.Callsign)
	return s, nil
}

// openStores attaches the optional contact log and worked-before store.
// Either may fail without stopping the session.
func (s *station) openStores() {
	if s.cfg.QSOLog.Enabled {
		l, err := qsolog.Open(s.cfg.QSOLog.Path)
		if err != nil {
			log.Printf("Warning: QSO log disabled: %v", err)
		} else {
			s.qsoLog = l
			s.ctrl.AddObserver(l)
			if n, err := l.Count(); err == nil {
				log.Printf("QSO log: %s (%s contacts on file)", s.cfg.QSOLog.Path, humanize.Comma(int64(n)))
			}
		}
	}
	if s.cfg.Worked.Enabled {
		ws, err := workedstore.Open(s.cfg.Worked.Dir, int64(s.cfg.Worked.CacheMB)<<20)
		if err != nil {
			log.Printf("Warning: worked-before store disabled: %v", err)
		} else {
			s.worked = ws
			s.ctrl.AddObserver(ws)
			log.Printf("Worked store: %s", s.cfg.Worked.Dir)
		}
	}
}

// commandOptions exposes only the stores that opened; a typed nil would
// otherwise look like a live reader.
func (s *station) commandOptions() commands.Options {
	opts := commands.Options{
		Buffer:     s.recent,
		NewContest: contestFactory(s.cfg, s.seed, s.zones),
		ExportDir:  s.cfg.Export.Dir,
	}
	if s.qsoLog != nil {
		opts.Archive = s.qsoLog
	}
	if s.worked != nil {
		opts.Worked = s.worked
	}
	return opts
}

func (s *station) close() {
	if s.qsoLog != nil {
		if err := s.qsoLog.Close(); err != nil {
			log.Printf("QSO log: close: %v", err)
		}
	}
	if s.worked != nil {
		if err := s.worked.Close(); err != nil {
			log.Printf("Worked store: close: %v", err)
		}
	}
}
