package engine

import "fmt"

// ActionKind is an abstract operator action. Front-ends map their keys and
// commands onto these.
type ActionKind int

const (
	ActionStartCQ ActionKind = iota
	ActionSubmitCallsign
	ActionSubmitExchange
	ActionSendTheirCallOnly
	ActionSendOurExchangeOnly
	ActionRequestRepeat
	ActionSendThankYou
	ActionRestart
	ActionStop
	ActionAdjustWPM
)

var actionNames = map[ActionKind]string{
	ActionStartCQ:             "cq",
	ActionSubmitCallsign:      "call",
	ActionSubmitExchange:      "log",
	ActionSendTheirCallOnly:   "his-call",
	ActionSendOurExchangeOnly: "exchange",
	ActionRequestRepeat:       "agn",
	ActionSendThankYou:        "tu",
	ActionRestart:             "restart",
	ActionStop:                "stop",
	ActionAdjustWPM:           "wpm",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is one operator input. Call carries the callsign field where the
// action reads it; Fields the exchange entries for SubmitExchange; Delta the
// WPM change for AdjustWPM.
type Action struct {
	Kind   ActionKind
	Call   string
	Fields []string
	Delta  int
}

// Convenience constructors used by the front-ends.

func StartCQ() Action { return Action{Kind: ActionStartCQ} }

func Restart() Action { return Action{Kind: ActionRestart} }

func SubmitCallsign(call string) Action {
	return Action{Kind: ActionSubmitCallsign, Call: call}
}

func SubmitExchange(call string, fields []string) Action {
	return Action{Kind: ActionSubmitExchange, Call: call, Fields: fields}
}

func SendTheirCallOnly(call string) Action {
	return Action{Kind: ActionSendTheirCallOnly, Call: call}
}

func SendOurExchangeOnly(call string) Action {
	return Action{Kind: ActionSendOurExchangeOnly, Call: call}
}

func RequestRepeat() Action { return Action{Kind: ActionRequestRepeat} }

func SendThankYou() Action { return Action{Kind: ActionSendThankYou} }

func Stop() Action { return Action{Kind: ActionStop} }

func AdjustWPM(delta int) Action { return Action{Kind: ActionAdjustWPM, Delta: delta} }
