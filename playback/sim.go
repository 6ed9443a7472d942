package playback

import (
	"context"
	"sort"
	"sync"
	"time"

	"qsotrainer/pileup"
	"qsotrainer/qso"
)

// SimPlayer times transmissions with Morse arithmetic instead of producing
// audio. Commands record when each segment would end; Step delivers the
// notifications that have come due. One user transmission plays at a time;
// caller transmissions overlap freely.
type SimPlayer struct {
	mu      sync.Mutex
	sink    Sink
	now     func() time.Time
	user    *userJob
	callers map[pileup.CallerID]*callerJob
	// interrupts are delivered on the next Step so StopAll never calls the
	// sink from the engine's goroutine
	interrupts []TxID
	lastText   string
}

type userJob struct {
	tx        TxID
	segmented bool
	marks     []segmentMark
	next      int
	end       time.Time
}

type segmentMark struct {
	at   time.Time
	kind qso.SegmentKind
}

type callerJob struct {
	tx  TxID
	id  pileup.CallerID
	end time.Time
}

// NewSimPlayer builds a player reporting to sink; now supplies the start time
// of each command.
func NewSimPlayer(sink Sink, now func() time.Time) *SimPlayer {
	if now == nil {
		now = time.Now
	}
	return &SimPlayer{
		sink:    sink,
		now:     now,
		callers: make(map[pileup.CallerID]*callerJob),
	}
}

// PlayMessage queues an unsegmented user message.
func (p *SimPlayer) PlayMessage(tx TxID, content string, wpm int) {
	start := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replaceUser(&userJob{tx: tx, end: start.Add(Duration(content, wpm))})
	p.lastText = content
}

// PlaySegmented queues a user message made of segments separated by word
// gaps. Each segment is reported when its last element ends.
func (p *SimPlayer) PlaySegmented(tx TxID, segments []Segment, wpm int) {
	start := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	job := &userJob{tx: tx, segmented: true}
	at := start
	text := ""
	for i, seg := range segments {
		if i > 0 {
			at = at.Add(WordGap(wpm))
			text += " "
		}
		at = at.Add(Duration(seg.Content, wpm))
		job.marks = append(job.marks, segmentMark{at: at, kind: seg.Kind})
		text += seg.Content
	}
	job.end = at
	p.replaceUser(job)
	p.lastText = text
}

func (p *SimPlayer) replaceUser(job *userJob) {
	if p.user != nil {
		p.interrupts = append(p.interrupts, p.user.tx)
	}
	p.user = job
}

// StartCallerAudio queues a caller transmission. A caller already sending is
// cut off silently.
func (p *SimPlayer) StartCallerAudio(tx TxID, audio CallerAudio) {
	start := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callers[audio.Caller] = &callerJob{
		tx:  tx,
		id:  audio.Caller,
		end: start.Add(Duration(audio.Message, audio.WPM)),
	}
}

// StopAll abandons every transmission. The user transmission, if any, is
// reported as interrupted; caller audio just stops.
func (p *SimPlayer) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user != nil {
		p.interrupts = append(p.interrupts, p.user.tx)
		p.user = nil
	}
	clear(p.callers)
}

// Busy reports whether anything is still playing.
func (p *SimPlayer) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user != nil || len(p.callers) > 0
}

// LastUserText returns the text of the most recent user transmission.
func (p *SimPlayer) LastUserText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastText
}

type dueEvent struct {
	at   time.Time
	emit func(Sink)
}

// Step delivers every notification due at or before now, in time order.
func (p *SimPlayer) Step(now time.Time) {
	p.mu.Lock()
	var due []dueEvent
	for _, tx := range p.interrupts {
		tx := tx
		due = append(due, dueEvent{emit: func(s Sink) { s.TransmissionInterrupted(tx) }})
	}
	p.interrupts = p.interrupts[:0]

	if job := p.user; job != nil {
		for job.next < len(job.marks) && !now.Before(job.marks[job.next].at) {
			m := job.marks[job.next]
			tx := job.tx
			due = append(due, dueEvent{at: m.at, emit: func(s Sink) { s.SegmentComplete(tx, m.kind) }})
			job.next++
		}
		if !now.Before(job.end) {
			tx := job.tx
			due = append(due, dueEvent{at: job.end, emit: func(s Sink) { s.MessageComplete(tx) }})
			p.user = nil
		}
	}

	ids := make([]pileup.CallerID, 0, len(p.callers))
	for id := range p.callers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		job := p.callers[id]
		if now.Before(job.end) {
			continue
		}
		tx, cid := job.tx, job.id
		due = append(due, dueEvent{at: job.end, emit: func(s Sink) { s.CallerAudioComplete(tx, cid) }})
		delete(p.callers, id)
	}
	p.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, ev := range due {
		ev.emit(p.sink)
	}
}

// Run steps the player against the wall clock until ctx is done.
func (p *SimPlayer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Step(p.now())
		}
	}
}
