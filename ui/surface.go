package ui

import (
	"io"

	"qsotrainer/engine"
	"qsotrainer/stats"
)

// Surface abstracts the operator front-end so the terminal UI and the plain
// console can plug into the same wiring. Implementations must be safe for
// concurrent calls from the engine loop and the refresh loop.
type Surface interface {
	WaitReady()
	Stop()
	// Done is closed when the operator asks to quit.
	Done() <-chan struct{}
	SetSnapshot(snap engine.Snapshot)
	AppendQSO(rec stats.QSORecord)
	AppendSystem(line string)
	SystemWriter() io.Writer
}
