package qso

// Phase is the top-level controller state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCallingCQ
	PhaseWaitingForCallers
	PhaseStationsCalling
	PhaseUserTransmitting
	PhaseWaitingForStation
	PhaseStationTransmitting
	PhaseQSOComplete
	PhaseWaitingForTailEnder
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCallingCQ:
		return "calling-cq"
	case PhaseWaitingForCallers:
		return "waiting-for-callers"
	case PhaseStationsCalling:
		return "stations-calling"
	case PhaseUserTransmitting:
		return "user-transmitting"
	case PhaseWaitingForStation:
		return "waiting-for-station"
	case PhaseStationTransmitting:
		return "station-transmitting"
	case PhaseQSOComplete:
		return "qso-complete"
	case PhaseWaitingForTailEnder:
		return "waiting-for-tail-ender"
	}
	return "unknown"
}

// UserTx is what the operator is sending.
type UserTx int

const (
	UserTxNone UserTx = iota
	UserTxCQ
	UserTxExchange
	UserTxCallOnly
	UserTxExchangeOnly
	UserTxRepeat
	UserTxThankYou
)

func (u UserTx) String() string {
	switch u {
	case UserTxCQ:
		return "cq"
	case UserTxExchange:
		return "exchange"
	case UserTxCallOnly:
		return "call-only"
	case UserTxExchangeOnly:
		return "exchange-only"
	case UserTxRepeat:
		return "agn"
	case UserTxThankYou:
		return "tu"
	}
	return "none"
}

// StationTx is what the engaged caller is sending.
type StationTx int

const (
	StationTxNone StationTx = iota
	StationTxRepeating
	StationTxConfused
	StationTxRequestingAgn
	StationTxSendingExchange
	StationTxCorrection
)

func (s StationTx) String() string {
	switch s {
	case StationTxRepeating:
		return "repeating"
	case StationTxConfused:
		return "confused"
	case StationTxRequestingAgn:
		return "requesting-agn"
	case StationTxSendingExchange:
		return "sending-exchange"
	case StationTxCorrection:
		return "correction"
	}
	return "none"
}

// State is the controller state with its transmission kind, if any.
type State struct {
	Phase   Phase
	User    UserTx
	Station StationTx
}

// Idle is the resting state.
var Idle = State{Phase: PhaseIdle}

// Is reports whether s is in phase p.
func (s State) Is(p Phase) bool {
	return s.Phase == p
}

// UserTransmitting builds the user-transmitting state for kind.
func UserTransmitting(kind UserTx) State {
	return State{Phase: PhaseUserTransmitting, User: kind}
}

// StationTransmitting builds the station-transmitting state for kind.
func StationTransmitting(kind StationTx) State {
	return State{Phase: PhaseStationTransmitting, Station: kind}
}

func (s State) String() string {
	switch s.Phase {
	case PhaseUserTransmitting:
		return s.Phase.String() + "(" + s.User.String() + ")"
	case PhaseStationTransmitting:
		return s.Phase.String() + "(" + s.Station.String() + ")"
	}
	return s.Phase.String()
}

// Tone tells a front-end how to color the status line.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneBusy
	ToneWaiting
	ToneReady
	ToneAttention
)

// StatusText is the operator prompt for the state.
func StatusText(s State, c *Context) (string, Tone) {
	switch s.Phase {
	case PhaseIdle:
		return "Press F1/Enter to call CQ", ToneNeutral
	case PhaseCallingCQ:
		return "Calling CQ...", ToneBusy
	case PhaseWaitingForCallers:
		return "Waiting for callers...", ToneWaiting
	case PhaseStationsCalling:
		if c != nil && c.CorrectionInProgress {
			return "Fix callsign and press Enter", ToneAttention
		}
		return "Station calling - enter callsign", ToneReady
	case PhaseUserTransmitting:
		switch s.User {
		case UserTxCQ:
			return "Calling CQ...", ToneBusy
		case UserTxCallOnly:
			if c != nil && len(c.Active()) > 1 {
				return "Querying partial...", ToneBusy
			}
			return "Sending callsign...", ToneBusy
		case UserTxRepeat:
			return "Requesting repeat...", ToneBusy
		case UserTxThankYou:
			return "Sending TU...", ToneBusy
		}
		return "Sending exchange...", ToneBusy
	case PhaseWaitingForStation:
		if c != nil && c.CorrectionInProgress {
			return "Waiting for correction...", ToneWaiting
		}
		return "Waiting for response...", ToneWaiting
	case PhaseStationTransmitting:
		switch s.Station {
		case StationTxSendingExchange:
			return "Receiving exchange - press Enter to log", ToneReady
		case StationTxRequestingAgn:
			return "Station requests repeat - press F2", ToneAttention
		case StationTxCorrection:
			return "Station correcting callsign...", ToneAttention
		case StationTxConfused:
			return "Station confused - send callsign", ToneAttention
		}
		return "Station calling - enter callsign", ToneReady
	case PhaseQSOComplete:
		return "QSO logged! Press F1 for next", ToneReady
	case PhaseWaitingForTailEnder:
		return "QSO logged! Waiting...", ToneReady
	}
	return "", ToneNeutral
}
