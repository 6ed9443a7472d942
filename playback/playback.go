// Package playback is the transmission side of the trainer: the commands the
// engine issues, the completion notifications it gets back, and a simulated
// player that times messages the way a keyer would.
package playback

import (
	"qsotrainer/pileup"
	"qsotrainer/qso"
)

// TxID tags one transmission. Notifications carry the TxID they belong to so
// the engine can drop ones for transmissions it already abandoned.
type TxID uint64

// Segment is a piece of a user message with its meaning.
type Segment struct {
	Kind    qso.SegmentKind
	Content string
}

// CallerAudio is one transmission by a simulated station.
type CallerAudio struct {
	Caller    pileup.CallerID
	Message   string
	WPM       int
	OffsetHz  float64
	Amplitude float64
}

// Player accepts transmission commands. Implementations must not call back
// into the engine synchronously; completions go through the Sink.
type Player interface {
	PlayMessage(tx TxID, content string, wpm int)
	PlaySegmented(tx TxID, segments []Segment, wpm int)
	StartCallerAudio(tx TxID, audio CallerAudio)
	StopAll()
}

// Sink receives completion notifications from a Player.
type Sink interface {
	MessageComplete(tx TxID)
	SegmentComplete(tx TxID, kind qso.SegmentKind)
	TransmissionInterrupted(tx TxID)
	CallerAudioComplete(tx TxID, caller pileup.CallerID)
}
