package engine

import "qsotrainer/stats"

// QSOObserver is told about every logged contact. Observers run on the
// engine loop and must not block for long.
type QSOObserver interface {
	RecordQSO(rec stats.QSORecord)
}

// QSOObserverFunc adapts a function to QSOObserver.
type QSOObserverFunc func(rec stats.QSORecord)

func (f QSOObserverFunc) RecordQSO(rec stats.QSORecord) { f(rec) }
