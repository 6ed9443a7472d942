package engine

import (
	"qsotrainer/pileup"
	"qsotrainer/playback"
	"qsotrainer/qso"
)

// EventKind is a playback notification type.
type EventKind int

const (
	EventMessageComplete EventKind = iota
	EventSegmentComplete
	EventTransmissionInterrupted
	EventCallerAudioComplete
)

func (k EventKind) String() string {
	switch k {
	case EventMessageComplete:
		return "message-complete"
	case EventSegmentComplete:
		return "segment-complete"
	case EventTransmissionInterrupted:
		return "interrupted"
	case EventCallerAudioComplete:
		return "caller-complete"
	}
	return "unknown"
}

// Event is a playback notification as queued for the controller.
type Event struct {
	Kind    EventKind
	Tx      playback.TxID
	Segment qso.SegmentKind
	Caller  pileup.CallerID
}
