package stats

import "time"

// QSORecord is one logged contact.
type QSORecord struct {
	ID               uint64    `json:"id"`
	Time             time.Time `json:"time"`
	Contest          string    `json:"contest"`
	Serial           int       `json:"serial"`
	ExpectedCall     string    `json:"expected_call"`
	EnteredCall      string    `json:"entered_call"`
	CallsignCorrect  bool      `json:"callsign_correct"`
	ExpectedExchange string    `json:"expected_exchange"`
	EnteredExchange  string    `json:"entered_exchange"`
	ExchangeCorrect  bool      `json:"exchange_correct"`
	StationWPM       int       `json:"station_wpm"`
	Points           int       `json:"points"`
	UsedRepeatCall   bool      `json:"used_agn_callsign"`
	UsedRepeatExch   bool      `json:"used_agn_exchange"`
	UsedCallOnly     bool      `json:"used_f5_callsign"`
}

// Correct reports whether callsign and exchange were both copied right.
func (r QSORecord) Correct() bool {
	return r.CallsignCorrect && r.ExchangeCorrect
}

// Perfect is Correct without any repeat request.
func (r QSORecord) Perfect() bool {
	return r.Correct() && !r.UsedRepeatCall && !r.UsedRepeatExch
}
