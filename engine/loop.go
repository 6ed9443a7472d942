package engine

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"qsotrainer/internal/ratelimit"
)

// TickInterval is how often the loop checks timed transitions.
const TickInterval = 20 * time.Millisecond

// ErrBusy is returned when the loop's queue cannot take more work.
var ErrBusy = errors.New("engine: action queue full")

// Loop is the single goroutine that owns a Controller. Actions, closures and
// playback notifications all reach the controller through it.
type Loop struct {
	ctrl     *Controller
	disp     *Dispatcher
	actions  chan Action
	calls    chan func(*Controller)
	interval time.Duration
	snap     atomic.Pointer[Snapshot]
	dropped  *ratelimit.Counter
}

// NewLoop builds a loop over ctrl fed by disp.
func NewLoop(ctrl *Controller, disp *Dispatcher) *Loop {
	l := &Loop{
		ctrl:     ctrl,
		disp:     disp,
		actions:  make(chan Action, 64),
		calls:    make(chan func(*Controller), 16),
		interval: TickInterval,
		dropped:  ratelimit.NewCounter(5 * time.Second),
	}
	l.publish()
	return l
}

// Submit queues an action without blocking. False means the queue was full
// and the action was dropped.
func (l *Loop) Submit(a Action) bool {
	select {
	case l.actions <- a:
		return true
	default:
		if total, ok := l.dropped.Inc(); ok {
			log.Printf("Engine: action queue full; dropped %s (%d dropped so far)", a.Kind, total)
		}
		return false
	}
}

// Call queues fn to run on the loop goroutine with the controller.
func (l *Loop) Call(fn func(*Controller)) bool {
	select {
	case l.calls <- fn:
		return true
	default:
		return false
	}
}

// Sync runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Sync(ctx context.Context, fn func(*Controller)) error {
	done := make(chan struct{})
	if !l.Call(func(c *Controller) {
		defer close(done)
		fn(c)
	}) {
		return ErrBusy
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs a on the loop and waits for the controller's verdict.
func (l *Loop) Do(ctx context.Context, a Action) error {
	res := make(chan error, 1)
	if err := l.Sync(ctx, func(c *Controller) { res <- c.Handle(a) }); err != nil {
		return err
	}
	return <-res
}

// Snapshot returns the most recently published view.
func (l *Loop) Snapshot() Snapshot {
	if s := l.snap.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

func (l *Loop) publish() {
	s := l.ctrl.Snapshot()
	l.snap.Store(&s)
}

// Run drives the controller until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.disp.Events():
			l.ctrl.HandleEvent(ev)
		case a := <-l.actions:
			_ = l.ctrl.Handle(a)
		case fn := <-l.calls:
			fn(l.ctrl)
		case <-ticker.C:
			l.ctrl.Tick(l.ctrl.clock.Now())
		}
		l.publish()
	}
}

// RunOnce drains everything queued, runs one tick at now and publishes. It
// lets a caller on a virtual clock drive the loop without a goroutine.
func (l *Loop) RunOnce(now time.Time) {
	for {
		select {
		case ev := <-l.disp.Events():
			l.ctrl.HandleEvent(ev)
			continue
		case a := <-l.actions:
			_ = l.ctrl.Handle(a)
			continue
		case fn := <-l.calls:
			fn(l.ctrl)
			continue
		default:
		}
		break
	}
	l.ctrl.Tick(now)
	l.publish()
}
