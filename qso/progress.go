// Package qso holds the per-contact bookkeeping of the trainer: the progress
// ledger, the contact context, the controller state, and the table that
// decides how a calling station answers.
package qso

// SegmentKind is the semantic type of a piece of transmitted text.
type SegmentKind int

const (
	SegmentTheirCall SegmentKind = iota
	SegmentOurExchange
	SegmentCQ
	SegmentThankYou
	SegmentRepeatRequest
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentTheirCall:
		return "their-call"
	case SegmentOurExchange:
		return "our-exchange"
	case SegmentCQ:
		return "cq"
	case SegmentThankYou:
		return "tu"
	case SegmentRepeatRequest:
		return "agn"
	}
	return "unknown"
}

// Field names what the operator copied.
type Field int

const (
	FieldTheirCall Field = iota
	FieldTheirExchange
)

// Progress is the ledger of what has actually been transmitted and received
// in the current contact. Sent flags only move on natural completion of a
// segment; an interrupted segment counts as not sent.
type Progress struct {
	SentTheirCall         bool
	SentOurExchange       bool
	ReceivedTheirCall     bool
	ReceivedTheirExchange bool
}

// MarkSegmentComplete records a fully transmitted segment. Idempotent; kinds
// other than TheirCall and OurExchange leave the ledger alone.
func (p *Progress) MarkSegmentComplete(kind SegmentKind) {
	switch kind {
	case SegmentTheirCall:
		p.SentTheirCall = true
	case SegmentOurExchange:
		p.SentOurExchange = true
	}
}

// MarkReceived records that the operator submitted content for a field.
func (p *Progress) MarkReceived(f Field) {
	switch f {
	case FieldTheirCall:
		p.ReceivedTheirCall = true
	case FieldTheirExchange:
		p.ReceivedTheirExchange = true
	}
}

// Reset clears every flag for a new contact.
func (p *Progress) Reset() {
	*p = Progress{}
}

// CallerCanSendExchange reports whether the caller has heard both its call
// and our exchange.
func (p Progress) CallerCanSendExchange() bool {
	return p.SentTheirCall && p.SentOurExchange
}

// Complete reports whether all four flags are set.
func (p Progress) Complete() bool {
	return p.SentTheirCall && p.SentOurExchange && p.ReceivedTheirCall && p.ReceivedTheirExchange
}
