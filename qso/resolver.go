package qso

// Response is what the engaged caller does once the operator stops sending.
type Response int

const (
	ResponseConfused Response = iota
	ResponseRequestAgn
	ResponseSendExchange
	ResponseRepeatCall
	ResponseCorrection
	ResponseWait
)

func (r Response) String() string {
	switch r {
	case ResponseConfused:
		return "confused"
	case ResponseRequestAgn:
		return "agn"
	case ResponseSendExchange:
		return "exchange"
	case ResponseRepeatCall:
		return "repeat-call"
	case ResponseCorrection:
		return "correction"
	case ResponseWait:
		return "wait"
	}
	return "unknown"
}

// ResolveTable is the caller's view of the contact from what it has heard:
//
//	sent call  sent exchange  response
//	false      any            Confused
//	true       false          RequestAgn
//	true       true           SendExchange
func ResolveTable(p Progress) Response {
	switch {
	case !p.SentTheirCall:
		return ResponseConfused
	case !p.SentOurExchange:
		return ResponseRequestAgn
	default:
		return ResponseSendExchange
	}
}

// Flags are the context overrides consulted before the table.
type Flags struct {
	ExpectingRepeat       bool
	CorrectionInProgress  bool
	CorrectionAttempts    int
	MaxCorrectionAttempts int
	AwaitingOurExchange   bool
}

// FlagsFrom extracts the override flags from a context.
func FlagsFrom(c *Context, maxCorrections int) Flags {
	return Flags{
		ExpectingRepeat:       c.ExpectingRepeat,
		CorrectionInProgress:  c.CorrectionInProgress,
		CorrectionAttempts:    c.CorrectionAttempts,
		MaxCorrectionAttempts: maxCorrections,
		AwaitingOurExchange:   c.AwaitingOurExchange,
	}
}

// Resolve applies the overrides in order (repeat request, correction,
// waiting for our exchange) and otherwise falls back to the table. A
// correction past the attempt cap is ignored so the contact moves on.
func Resolve(p Progress, f Flags) Response {
	if f.ExpectingRepeat {
		return ResponseRepeatCall
	}
	if f.CorrectionInProgress && f.CorrectionAttempts <= f.MaxCorrectionAttempts {
		return ResponseCorrection
	}
	if f.AwaitingOurExchange && p.SentTheirCall && !p.SentOurExchange {
		return ResponseWait
	}
	return ResolveTable(p)
}

// CorrectionMessage is the caller restating its call, once or doubled for
// emphasis.
func CorrectionMessage(call string, single bool) string {
	if single {
		return call
	}
	return call + " " + call
}
