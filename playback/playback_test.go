package playback

import (
	"fmt"
	"testing"
	"time"

	"qsotrainer/pileup"
	"qsotrainer/qso"
)

type recordingSink struct {
	events []string
}

func (s *recordingSink) MessageComplete(tx TxID) {
	s.events = append(s.events, fmt.Sprintf("msg %d", tx))
}

func (s *recordingSink) SegmentComplete(tx TxID, kind qso.SegmentKind) {
	s.events = append(s.events, fmt.Sprintf("seg %d %s", tx, kind))
}

func (s *recordingSink) TransmissionInterrupted(tx TxID) {
	s.events = append(s.events, fmt.Sprintf("int %d", tx))
}

func (s *recordingSink) CallerAudioComplete(tx TxID, id pileup.CallerID) {
	s.events = append(s.events, fmt.Sprintf("caller %d %d", tx, id))
}

func (s *recordingSink) take() []string {
	out := s.events
	s.events = nil
	return out
}

func TestParisTiming(t *testing.T) {
	if got := Units("PARIS"); got != 43 {
		t.Fatalf("Units(PARIS) = %d, want 43", got)
	}
	if got := Units("paris paris"); got != 93 {
		t.Fatalf("Units(PARIS PARIS) = %d, want 93", got)
	}
	if got := UnitDuration(20); got != 60*time.Millisecond {
		t.Fatalf("UnitDuration(20) = %v", got)
	}
	if got := Duration("E", 20); got != 60*time.Millisecond {
		t.Fatalf("Duration(E) = %v", got)
	}
	if got := Encode("5nn tu"); got != "..... -. -. / - ..-" {
		t.Fatalf("Encode = %q", got)
	}
}

func TestSegmentedTiming(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	p := NewSimPlayer(sink, func() time.Time { return start })
	// E = 1 unit, T = 3 units, at 20 wpm one unit is 60 ms
	p.PlaySegmented(1, []Segment{
		{Kind: qso.SegmentTheirCall, Content: "E"},
		{Kind: qso.SegmentOurExchange, Content: "T"},
	}, 20)

	p.Step(start.Add(59 * time.Millisecond))
	if ev := sink.take(); len(ev) != 0 {
		t.Fatalf("early events %v", ev)
	}
	p.Step(start.Add(60 * time.Millisecond))
	if ev := sink.take(); len(ev) != 1 || ev[0] != "seg 1 their-call" {
		t.Fatalf("after first segment: %v", ev)
	}
	// 60 + 7*60 gap + 180 = 660 ms
	p.Step(start.Add(660 * time.Millisecond))
	ev := sink.take()
	if len(ev) != 2 || ev[0] != "seg 1 our-exchange" || ev[1] != "msg 1" {
		t.Fatalf("after message: %v", ev)
	}
	if p.Busy() {
		t.Fatalf("player still busy")
	}
}

func TestStopAllInterruptsBeforeSegmentEnds(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	p := NewSimPlayer(sink, func() time.Time { return start })
	p.PlaySegmented(7, []Segment{{Kind: qso.SegmentTheirCall, Content: "W1AW"}}, 30)
	p.StartCallerAudio(8, CallerAudio{Caller: 3, Message: "W1AW", WPM: 30})
	p.StopAll()
	if len(sink.events) != 0 {
		t.Fatalf("StopAll must not notify synchronously")
	}
	p.Step(start.Add(10 * time.Second))
	ev := sink.take()
	if len(ev) != 1 || ev[0] != "int 7" {
		t.Fatalf("expected only the interruption, got %v", ev)
	}
}

func TestCallersCompleteInTimeOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	p := NewSimPlayer(sink, func() time.Time { return start })
	p.StartCallerAudio(1, CallerAudio{Caller: 1, Message: "K3LR", WPM: 20})
	p.StartCallerAudio(2, CallerAudio{Caller: 2, Message: "E", WPM: 20})
	p.PlayMessage(3, "TU", 20)
	p.Step(start.Add(time.Minute))
	ev := sink.take()
	want := []string{"caller 2 2", "msg 3", "caller 1 1"}
	if len(ev) != len(want) {
		t.Fatalf("events %v, want %v", ev, want)
	}
	for i := range want {
		if ev[i] != want[i] {
			t.Fatalf("events %v, want %v", ev, want)
		}
	}
}

func TestReplacingUserMessageInterruptsOld(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	p := NewSimPlayer(sink, func() time.Time { return start })
	p.PlayMessage(1, "CQ TEST", 30)
	p.PlayMessage(2, "TU", 30)
	p.Step(start.Add(time.Minute))
	ev := sink.take()
	if len(ev) != 2 || ev[0] != "int 1" || ev[1] != "msg 2" {
		t.Fatalf("events %v", ev)
	}
	if p.LastUserText() != "TU" {
		t.Fatalf("last text %q", p.LastUserText())
	}
}
