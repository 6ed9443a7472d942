package engine

import (
	"context"
	"log"
	"time"

	"qsotrainer/internal/ratelimit"
	"qsotrainer/pileup"
	"qsotrainer/playback"
	"qsotrainer/qso"
)

// DefaultEventQueue is the dispatcher's buffer size.
const DefaultEventQueue = 256

// Dispatcher is the playback.Sink that queues notifications for the loop.
// Players call it from their own goroutine.
type Dispatcher struct {
	events chan Event
	done   <-chan struct{}
	full   *ratelimit.Counter
}

var _ playback.Sink = (*Dispatcher)(nil)

// NewDispatcher builds a dispatcher with a queue of size events. Once ctx is
// done, sends into a full queue are dropped instead of blocking.
func NewDispatcher(ctx context.Context, size int) *Dispatcher {
	if size <= 0 {
		size = DefaultEventQueue
	}
	return &Dispatcher{
		events: make(chan Event, size),
		done:   ctx.Done(),
		full:   ratelimit.NewCounter(5 * time.Second),
	}
}

// Events is the queue the loop consumes.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

// Pending is the number of queued notifications.
func (d *Dispatcher) Pending() int {
	return len(d.events)
}

func (d *Dispatcher) push(ev Event) {
	select {
	case d.events <- ev:
		return
	default:
	}
	if total, ok := d.full.Inc(); ok {
		log.Printf("Dispatcher: event queue full (%d waits so far); blocking %s", total, ev.Kind)
	}
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

func (d *Dispatcher) MessageComplete(tx playback.TxID) {
	d.push(Event{Kind: EventMessageComplete, Tx: tx})
}

func (d *Dispatcher) SegmentComplete(tx playback.TxID, kind qso.SegmentKind) {
	d.push(Event{Kind: EventSegmentComplete, Tx: tx, Segment: kind})
}

func (d *Dispatcher) TransmissionInterrupted(tx playback.TxID) {
	d.push(Event{Kind: EventTransmissionInterrupted, Tx: tx})
}

func (d *Dispatcher) CallerAudioComplete(tx playback.TxID, caller pileup.CallerID) {
	d.push(Event{Kind: EventCallerAudioComplete, Tx: tx, Caller: caller})
}
