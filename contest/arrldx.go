package contest

import (
	"log"

	"qsotrainer/callsign"
	"qsotrainer/strutil"
)

const arrlDXID = "arrldx"

// arrlDX sends 5NN plus a state/province (W/VE) or power (DX).
type arrlDX struct {
	base
	userExchange string
}

func newARRLDX(opts Options) (Contest, error) {
	pool, err := loadOrDefault(opts.CallsignFile, arrlDXStation, []Candidate{
		{Call: "VE2FK", Fields: []string{"QC"}},
		{Call: "K3LR", Fields: []string{"PA"}},
		{Call: "DL1ABC", Fields: []string{"100"}},
		{Call: "JA1ABC", Fields: []string{"500"}},
	})
	if err != nil {
		log.Printf("Contest: %v; using built-in ARRL DX stations", err)
	}
	return &arrlDX{
		base:         newBase(arrlDXID, "ARRL DX CW", opts, pool),
		userExchange: strutil.NormalizeUpper(opts.setting("user_exchange", "CT")),
	}, nil
}

// arrlDXStation reads "call,name,state,power" lines where exactly one of
// state or power is filled in.
func arrlDXStation(fields []string) (Candidate, bool) {
	if len(fields) < 4 {
		return Candidate{}, false
	}
	call := callsign.Normalize(fields[0])
	state, power := fields[2], fields[3]
	if call == "" || (state == "") == (power == "") {
		return Candidate{}, false
	}
	exch := state
	if exch == "" {
		exch = power
	}
	return Candidate{Call: call, Fields: []string{exch}}, true
}

func (c *arrlDX) ExchangeFields() []ExchangeField {
	return []ExchangeField{
		{Key: "rst", Label: "RST", Placeholder: "5NN", Width: 3, Kind: FieldText, Default: "5NN"},
		{Key: "exchange", Label: "Exchange", Placeholder: "ST/PWR", Width: 6, Kind: FieldAlnum, FocusOnEnter: true},
	}
}

// GenerateExchange is used for file entries that carry no exchange: W/VE
// stations send a state, everyone else a power.
func (c *arrlDX) GenerateExchange(call string, _ int) Exchange {
	powers := []string{"100", "KW", "500", "1K"}
	pick := powers[0]
	if c.rng != nil {
		pick = powers[c.rng.IntN(len(powers))]
	}
	if area := callsign.CallArea(call); area != 0 && (call[0] == 'W' || call[0] == 'K' || call[0] == 'N') {
		return NewExchange("5NN", usStateByArea(area))
	}
	return NewExchange("5NN", pick)
}

func (c *arrlDX) UserExchange(int) []string {
	return []string{"5NN", c.userExchange}
}

func (c *arrlDX) NextCandidate(serial int) (string, Exchange, bool) {
	cand, ok := c.draw()
	if !ok {
		return "", Exchange{}, false
	}
	if len(cand.Fields) == 0 {
		return cand.Call, c.GenerateExchange(cand.Call, serial), true
	}
	return cand.Call, NewExchange("5NN", cand.Fields[0]), true
}

func (c *arrlDX) Validate(expectedCall string, expected Exchange, receivedCall string, received []string) Validation {
	callOK := sameCall(expectedCall, receivedCall)
	rstOK := len(received) > 0 && normalizeCutNumbers(expected.Field(0)) == normalizeCutNumbers(received[0])
	exchOK := len(received) > 1 && normalizeCutNumbers(expected.Field(1)) == normalizeCutNumbers(received[1])
	return scored(callOK, rstOK && exchOK, 1)
}

func usStateByArea(area byte) string {
	switch area {
	case '1':
		return "CT"
	case '2':
		return "NY"
	case '3':
		return "PA"
	case '4':
		return "VA"
	case '5':
		return "TX"
	case '6':
		return "CA"
	case '7':
		return "WA"
	case '8':
		return "OH"
	case '9':
		return "IL"
	case '0':
		return "CO"
	}
	return "CA"
}
