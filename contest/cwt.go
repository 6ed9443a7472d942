package contest

import (
	"log"

	"qsotrainer/callsign"
	"qsotrainer/strutil"
)

const cwtID = "cwt"

// cwt is the CWops mini-test: name plus member number (or state/country for
// non-members).
type cwt struct {
	base
	userName   string
	userNumber string
}

func newCWT(opts Options) (Contest, error) {
	pool, err := loadOrDefault(opts.CallsignFile, cwtStation, []Candidate{
		{Call: "W1AW", Fields: []string{"JOE", "1"}},
		{Call: "K5ZD", Fields: []string{"RANDY", "2"}},
		{Call: "N1MM", Fields: []string{"TOM", "100"}},
		{Call: "K3LR", Fields: []string{"TIM", "55"}},
		{Call: "W9RE", Fields: []string{"MIKE", "IN"}},
	})
	if err != nil {
		log.Printf("Contest: %v; using built-in CWT stations", err)
	}
	name := opts.User.Name
	if name == "" {
		name = "OP"
	}
	return &cwt{
		base:       newBase(cwtID, "CWT", opts, pool),
		userName:   strutil.NormalizeUpper(opts.setting("user_name", name)),
		userNumber: strutil.NormalizeUpper(opts.setting("user_number", "CT")),
	}, nil
}

// cwtStation accepts "call,name,number" lines with all three fields present.
func cwtStation(fields []string) (Candidate, bool) {
	if len(fields) < 3 {
		return Candidate{}, false
	}
	call, name, number := callsign.Normalize(fields[0]), fields[1], fields[2]
	if name == "" || number == "" || !callsign.IsValid(call) {
		return Candidate{}, false
	}
	return Candidate{Call: call, Fields: []string{name, number}}, true
}

func (c *cwt) ExchangeFields() []ExchangeField {
	return []ExchangeField{
		{Key: "name", Label: "Name", Placeholder: "BOB", Width: 8, Kind: FieldText},
		{Key: "number", Label: "Number", Placeholder: "123", Width: 6, Kind: FieldAlnum},
	}
}

func (c *cwt) GenerateExchange(string, int) Exchange {
	return NewExchange("BOB", "1234")
}

func (c *cwt) UserExchange(int) []string {
	return []string{c.userName, c.userNumber}
}

func (c *cwt) NextCandidate(serial int) (string, Exchange, bool) {
	cand, ok := c.draw()
	if !ok {
		return "", Exchange{}, false
	}
	if len(cand.Fields) < 2 {
		return cand.Call, c.GenerateExchange(cand.Call, serial), true
	}
	return cand.Call, NewExchange(cand.Fields...), true
}

func (c *cwt) Validate(expectedCall string, expected Exchange, receivedCall string, received []string) Validation {
	callOK := sameCall(expectedCall, receivedCall)
	exchOK := false
	if len(expected.Fields) >= 2 && len(received) >= 2 {
		exchOK = sameCall(expected.Fields[0], received[0]) && sameCall(expected.Fields[1], received[1])
	}
	return scored(callOK, exchOK, 1)
}
