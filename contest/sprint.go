package contest

import (
	"log"
	"strconv"
	"strings"

	"qsotrainer/callsign"
	"qsotrainer/strutil"
)

const sprintID = "sprint"

var sprintNames = []string{
	"BOB", "JIM", "TOM", "JOHN", "MIKE", "DAVE", "BILL", "JOE", "DAN", "RICK",
	"PAUL", "MARK", "GARY", "KEN", "RON", "DON", "JACK", "PETE", "AL", "ED",
	"STEVE", "FRED", "GEORGE", "FRANK", "LARRY", "JERRY", "RAY", "CARL", "RALPH", "BRUCE",
}

// sprint exchange: serial, name, QTH.
type sprint struct {
	base
	name string
	qth  string
}

func newSprint(opts Options) (Contest, error) {
	pool, err := loadOrDefault(opts.CallsignFile, callOnly, callsFrom(defaultCalls...))
	if err != nil {
		log.Printf("Contest: %v; using built-in callsigns", err)
	}
	name := opts.User.Name
	if name == "" {
		name = "OP"
	}
	qth := opts.User.Section
	if qth == "" {
		qth = "CT"
	}
	return &sprint{
		base: newBase(sprintID, "North American Sprint", opts, pool),
		name: strutil.NormalizeUpper(opts.setting("user_name", name)),
		qth:  strutil.NormalizeUpper(opts.setting("user_qth", qth)),
	}, nil
}

func (c *sprint) ExchangeFields() []ExchangeField {
	return []ExchangeField{
		{Key: "serial", Label: "NR", Placeholder: "1", Width: 4, Kind: FieldNumber},
		{Key: "name", Label: "Name", Placeholder: "BOB", Width: 8, Kind: FieldText},
		{Key: "qth", Label: "QTH", Placeholder: "CT", Width: 3, Kind: FieldSection},
	}
}

func (c *sprint) GenerateExchange(call string, serial int) Exchange {
	name := sprintNames[0]
	if c.rng != nil {
		name = sprintNames[c.rng.IntN(len(sprintNames))]
	}
	return NewExchange(strconv.Itoa(serial), name, usStateByArea(callsign.CallArea(call)))
}

func (c *sprint) UserExchange(serial int) []string {
	return []string{strconv.Itoa(serial), c.name, c.qth}
}

func (c *sprint) NextCandidate(serial int) (string, Exchange, bool) {
	cand, ok := c.draw()
	if !ok {
		return "", Exchange{}, false
	}
	return cand.Call, c.GenerateExchange(cand.Call, serial), true
}

func (c *sprint) Validate(expectedCall string, expected Exchange, receivedCall string, received []string) Validation {
	callOK := sameCall(expectedCall, receivedCall)
	exchOK := false
	if len(received) >= 3 && len(expected.Fields) >= 3 {
		exchOK = sameNumber(expected.Fields[0], received[0]) &&
			strings.EqualFold(expected.Fields[1], received[1]) &&
			strings.EqualFold(expected.Fields[2], received[2])
	}
	return scored(callOK, exchOK, 1)
}
